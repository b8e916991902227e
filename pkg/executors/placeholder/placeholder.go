// Package placeholder implements the action:placeholder step executor, the
// no-op filling the NO branch of a freshly created if/else rule until the
// author replaces it with a real action.
package placeholder

import (
	"context"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return models.SubtypeActionPlaceholder
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (*Factory) Create(_ map[string]any) (protocol.Executor, error) {
	return &Executor{}, nil
}

type Executor struct{}

func (*Executor) Execute(_ context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger.Debug("Placeholder step, nothing to do", "step_id", executionCtx.Step.ID)

	return map[string]any{protocol.ResultSkippedKey: true}, nil
}
