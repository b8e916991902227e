package removetag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/protocol"
)

type Executor struct {
	tags  protocol.TagMutator
	tagID string
}

// Execute detaches the configured tag. Detaching a tag the contact does
// not carry is a no-op.
func (e *Executor) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "remove_tag", "tag_id", e.tagID)

	if !executionCtx.Contact.HasTag(e.tagID) {
		logger.Debug("Contact not tagged")

		return map[string]any{"tag_id": e.tagID, protocol.ResultSkippedKey: true}, nil
	}

	err := e.tags.DetachTag(ctx, executionCtx.Contact.ID, e.tagID)
	if err != nil {
		return nil, fmt.Errorf("detach tag %s: %w", e.tagID, err)
	}

	logger.Info("Tag detached", "contact_id", executionCtx.Contact.ID)

	return map[string]any{"tag_id": e.tagID}, nil
}
