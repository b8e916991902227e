package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripkit/dripkit/pkg/protocol"
)

type mockExecutor struct {
	config map[string]any
}

func (m *mockExecutor) Execute(_ context.Context, _ protocol.ExecutionContext, _ *slog.Logger) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

type mockFactory struct {
	id        string
	createErr error
}

func (m *mockFactory) ID() string {
	return m.id
}

func (m *mockFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (m *mockFactory) Create(config map[string]any) (protocol.Executor, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}

	return &mockExecutor{config: config}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRegisterAndCreateExecutor(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterExecutor(&mockFactory{id: "action:mock"})

	executor, err := reg.CreateExecutor("action:mock", map[string]any{"message": "hello"})
	require.NoError(t, err)

	mock, ok := executor.(*mockExecutor)
	require.True(t, ok)
	assert.Equal(t, "hello", mock.config["message"])
}

func TestCreateExecutorUnknownSubtype(t *testing.T) {
	reg := NewRegistry(testLogger())

	_, err := reg.CreateExecutor("action:nope", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutorNotRegistered)
}

func TestCreateExecutorPropagatesFactoryError(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterExecutor(&mockFactory{id: "action:broken", createErr: errors.New("bad config")})

	_, err := reg.CreateExecutor("action:broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestSchemaLookup(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterExecutor(&mockFactory{id: "action:mock"})

	schema, err := reg.Schema("action:mock")
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])

	_, err = reg.Schema("action:nope")
	assert.ErrorIs(t, err, ErrExecutorNotRegistered)
}

func TestSubtypes(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.RegisterExecutor(&mockFactory{id: "action:a"})
	reg.RegisterExecutor(&mockFactory{id: "action:b"})

	assert.ElementsMatch(t, []string{"action:a", "action:b"}, reg.Subtypes())
}
