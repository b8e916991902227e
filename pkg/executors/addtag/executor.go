package addtag

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

// Execute attaches the configured tag. Attaching a tag the contact already
// carries is a no-op, which keeps redelivered jobs harmless.
func (e *Executor) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "add_tag", "tag_id", e.tagID)

	if executionCtx.Contact.HasTag(e.tagID) {
		logger.Debug("Contact already tagged")

		return map[string]any{"tag_id": e.tagID, protocol.ResultSkippedKey: true}, nil
	}

	err := e.tags.AttachTag(ctx, executionCtx.Contact.ID, e.tagID)
	if err != nil {
		return nil, fmt.Errorf("attach tag %s: %w", e.tagID, err)
	}

	logger.Info("Tag attached", "contact_id", executionCtx.Contact.ID)

	return map[string]any{"tag_id": e.tagID}, nil
}
