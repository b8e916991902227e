// Package protocol defines the contracts between the automation engine and
// the pluggable pieces it drives: step executors, mail delivery, attribution
// and the narrow persistence surfaces executors are allowed to touch.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/models"
)

// ExecutionContext carries everything a step executor may read: the
// automation being traversed, the step to run, the contact the step runs
// for and the audience that owns them.
type ExecutionContext struct {
	Automation *models.Automation
	Audience   *models.Audience
	Step       *models.AutomationStep
	Contact    *models.Contact
}

// Executor runs one configured step for one contact. Implementations must
// be idempotent under redelivery: the queue is at-least-once.
type Executor interface {
	Execute(ctx context.Context, executionCtx ExecutionContext, logger *slog.Logger) (map[string]any, error)
}

// ExecutorFactory builds executors for one step subtype.
type ExecutorFactory interface {
	// ID returns the step subtype the factory serves, e.g. "action:add_tag".
	ID() string
	// Schema returns the JSON schema for the step configuration.
	Schema() map[string]any
	Create(config map[string]any) (Executor, error)
}

// Result keys executors agree on with the scheduler.
const (
	// ResultBranchKey carries the branch index chosen by a rule executor.
	ResultBranchKey = "branch"
	// ResultSkippedKey is true when an action decided not to run, e.g. a
	// send-email step whose template has been deleted.
	ResultSkippedKey = "skipped"
)
