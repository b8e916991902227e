package removetag

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type fakeTagMutator struct {
	detached [][2]string
}

func (f *fakeTagMutator) AttachTag(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeTagMutator) DetachTag(_ context.Context, contactID, tagID string) error {
	f.detached = append(f.detached, [2]string{contactID, tagID})

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestFactoryRequiresTagID(t *testing.T) {
	factory := NewFactory(&fakeTagMutator{})

	_, err := factory.Create(map[string]any{})
	require.Error(t, err)
}

func TestExecuteDetachesTag(t *testing.T) {
	mutator := &fakeTagMutator{}
	factory := NewFactory(mutator)

	executor, err := factory.Create(map[string]any{"tag_id": "tag-trial"})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ExecutionContext{
		Contact: &models.Contact{ID: "contact-1", Tags: []string{"tag-trial", "tag-vip"}},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "tag-trial", result["tag_id"])
	require.Len(t, mutator.detached, 1)
	assert.Equal(t, [2]string{"contact-1", "tag-trial"}, mutator.detached[0])
}

func TestExecuteSkipsWhenNotTagged(t *testing.T) {
	mutator := &fakeTagMutator{}
	factory := NewFactory(mutator)

	executor, err := factory.Create(map[string]any{"tag_id": "tag-trial"})
	require.NoError(t, err)

	result, err := executor.Execute(context.Background(), protocol.ExecutionContext{
		Contact: &models.Contact{ID: "contact-1"},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, true, result[protocol.ResultSkippedKey])
	assert.Empty(t, mutator.detached)
}
