package ifelse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Executor struct {
	group models.FilterGroup
}

// Execute compiles the rule's filter against the audience schema and
// matches the contact in memory. The chosen branch index travels back to
// the scheduler in the result.
func (e *Executor) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("executor", "if_else")

	predicate, err := filter.Compile(&e.group, executionCtx.Audience)
	if err != nil {
		return nil, fmt.Errorf("if_else: compile filter: %w", err)
	}

	matched := predicate.Match(executionCtx.Contact)

	branch := models.BranchNo
	if matched {
		branch = models.BranchYes
	}

	logger.Debug("Rule evaluated", "contact_id", executionCtx.Contact.ID, "matched", matched)

	return map[string]any{
		protocol.ResultBranchKey: branch,
		"matched":                matched,
	}, nil
}
