// Package automation walks contacts through automation trees one step at a
// time. Each invocation runs exactly one (step, contact) pair and returns
// the events that continue the traversal; publishing them is the caller's
// job, so continuation is message passing only.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripkit/dripkit/pkg/eventbus"
	"github.com/dripkit/dripkit/pkg/events"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/protocol"
	"github.com/dripkit/dripkit/pkg/registry"
)

type Scheduler struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

func NewScheduler(store persistence.Persistence, reg *registry.Registry) *Scheduler {
	return &Scheduler{
		persistence: store,
		registry:    reg,
	}
}

// ExecuteStep runs one step for one contact and returns the follow-up
// events. Errors mean the job should be retried by the queue; a nil event
// slice with a nil error means the traversal stops here.
func (s *Scheduler) ExecuteStep(ctx context.Context, logger *slog.Logger, stepID, contactID string) ([]eventbus.Event, error) {
	started := time.Now()

	step, err := s.persistence.FindByID(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("fetch step %s: %w", stepID, err)
	}

	automation, err := s.persistence.AutomationByID(ctx, step.AutomationID)
	if err != nil {
		return nil, fmt.Errorf("fetch automation %s: %w", step.AutomationID, err)
	}

	if !automation.Active {
		// Deactivation only prevents new work; jobs already queued drain
		// here as no-ops.
		logger.InfoContext(ctx, "Automation inactive, dropping step job", "automation_id", automation.ID)

		return nil, nil
	}

	contact, err := s.persistence.ContactByID(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("fetch contact %s: %w", contactID, err)
	}

	audience, err := s.persistence.AudienceByID(ctx, automation.AudienceID)
	if err != nil {
		return nil, fmt.Errorf("fetch audience %s: %w", automation.AudienceID, err)
	}

	executionCtx := protocol.ExecutionContext{
		Automation: automation,
		Audience:   audience,
		Step:       step,
		Contact:    contact,
	}

	switch {
	case step.IsEnd():
		return s.finish(ctx, executionCtx)
	case step.IsRule():
		return s.executeRule(ctx, logger, executionCtx, started)
	default:
		return s.executeStep(ctx, logger, executionCtx, started)
	}
}

// finish records the end step and closes the contact's traversal.
func (s *Scheduler) finish(ctx context.Context, executionCtx protocol.ExecutionContext) ([]eventbus.Event, error) {
	err := s.persistence.RecordCompletion(ctx, executionCtx.Contact.ID, executionCtx.Step.ID)
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}

	finished := events.ContactFinished{
		BaseEvent:  events.NewBaseEvent(events.ContactFinishedEvent, executionCtx.Automation.ID),
		ContactID:  executionCtx.Contact.ID,
		LastStepID: executionCtx.Step.ID,
	}

	return []eventbus.Event{finished}, nil
}

// executeRule evaluates the rule and routes the contact down the chosen
// branch. A missing branch child halts the traversal silently.
func (s *Scheduler) executeRule(ctx context.Context, logger *slog.Logger, executionCtx protocol.ExecutionContext, started time.Time) ([]eventbus.Event, error) {
	executor, err := s.registry.CreateExecutor(executionCtx.Step.Subtype, executionCtx.Step.Configuration)
	if err != nil {
		return nil, fmt.Errorf("create executor for %q: %w", executionCtx.Step.Subtype, err)
	}

	result, err := executor.Execute(ctx, executionCtx, logger)
	if err != nil {
		return nil, fmt.Errorf("execute rule step %s: %w", executionCtx.Step.ID, err)
	}

	branch, ok := branchFromResult(result)
	if !ok {
		return nil, fmt.Errorf("rule step %s returned no branch decision", executionCtx.Step.ID)
	}

	followUps := []eventbus.Event{s.completedEvent(executionCtx, time.Since(started))}

	child, err := s.persistence.FindBranchChild(ctx, executionCtx.Step.ID, branch)
	if err != nil {
		if errors.Is(err, persistence.ErrStepNotFound) {
			logger.InfoContext(ctx, "Branch has no child, halting traversal",
				"step_id", executionCtx.Step.ID, "branch", branch)

			return followUps, nil
		}

		return nil, fmt.Errorf("find branch child: %w", err)
	}

	return append(followUps, s.availableEvent(executionCtx, child.ID)), nil
}

// executeStep runs an action (or passes a trigger through), records the
// completion and enqueues the sole child.
func (s *Scheduler) executeStep(ctx context.Context, logger *slog.Logger, executionCtx protocol.ExecutionContext, started time.Time) ([]eventbus.Event, error) {
	step := executionCtx.Step

	completed, err := s.persistence.HasCompleted(ctx, executionCtx.Contact.ID, step.ID)
	if err != nil {
		return nil, fmt.Errorf("check completion: %w", err)
	}

	// Trigger steps are completed by the enroller; tag actions are natural
	// no-ops when re-run, so a recorded completion short-circuits them.
	// Either way a redelivered job still moves the contact forward.
	runExecutor := step.Type == models.StepTypeAction && !(completed && isTagAction(step.Subtype))

	if runExecutor {
		executor, err := s.registry.CreateExecutor(step.Subtype, step.Configuration)
		if err != nil {
			return nil, fmt.Errorf("create executor for %q: %w", step.Subtype, err)
		}

		_, err = executor.Execute(ctx, executionCtx, logger)
		if err != nil {
			return nil, fmt.Errorf("execute step %s: %w", step.ID, err)
		}
	}

	err = s.persistence.RecordCompletion(ctx, executionCtx.Contact.ID, step.ID)
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}

	followUps := []eventbus.Event{s.completedEvent(executionCtx, time.Since(started))}

	child, err := s.persistence.FindChild(ctx, step.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrStepNotFound) {
			finished := events.ContactFinished{
				BaseEvent:  events.NewBaseEvent(events.ContactFinishedEvent, executionCtx.Automation.ID),
				ContactID:  executionCtx.Contact.ID,
				LastStepID: step.ID,
			}

			return append(followUps, finished), nil
		}

		return nil, fmt.Errorf("find child step: %w", err)
	}

	return append(followUps, s.availableEvent(executionCtx, child.ID)), nil
}

func (s *Scheduler) completedEvent(executionCtx protocol.ExecutionContext, elapsed time.Duration) events.StepCompleted {
	completed := events.StepCompleted{
		BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, executionCtx.Automation.ID),
		StepID:    executionCtx.Step.ID,
		ContactID: executionCtx.Contact.ID,
		Subtype:   executionCtx.Step.Subtype,
		Duration:  elapsed,
	}
	completed.CompletedAt = completed.Timestamp

	return completed
}

func (s *Scheduler) availableEvent(executionCtx protocol.ExecutionContext, stepID string) events.StepAvailable {
	return events.StepAvailable{
		BaseEvent: events.NewBaseEvent(events.StepAvailableEvent, executionCtx.Automation.ID),
		StepID:    stepID,
		ContactID: executionCtx.Contact.ID,
	}
}

func isTagAction(subtype string) bool {
	return subtype == models.SubtypeActionAddTag || subtype == models.SubtypeActionRemoveTag
}

// branchFromResult reads the branch index a rule executor put in its
// result.
func branchFromResult(result map[string]any) (int, bool) {
	raw, ok := result[protocol.ResultBranchKey]
	if !ok {
		return 0, false
	}

	switch value := raw.(type) {
	case int:
		return value, true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}
