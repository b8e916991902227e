// Package enrollment admits contacts into active automations. On every
// cron tick the enroller evaluates each automation's trigger filter
// against its audience and hands matching contacts to the workers by
// publishing a step available event for the trigger's child.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/dripkit/dripkit/pkg/eventbus"
	"github.com/dripkit/dripkit/pkg/events"
	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

// DefaultPageSize is how many contacts one predicate page fetches.
const DefaultPageSize = 100

type Enroller struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	cron        *cron.Cron
	pageSize    int
}

func NewEnroller(store persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Enroller {
	return &Enroller{
		persistence: store,
		publisher:   publisher,
		logger:      logger.With("module", "enrollment"),
		pageSize:    DefaultPageSize,
	}
}

// Start schedules RunOnce on the given cron expression and returns
// immediately. Ticks overlap-protect themselves only through the
// completion ledger, so a slow sweep running into the next tick is safe.
func (e *Enroller) Start(ctx context.Context, schedule string) error {
	e.cron = cron.New()

	_, err := e.cron.AddFunc(schedule, func() {
		err := e.RunOnce(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "Enrollment sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid enrollment schedule %q: %w", schedule, err)
	}

	e.cron.Start()
	e.logger.InfoContext(ctx, "Enroller started", "schedule", schedule)

	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish.
func (e *Enroller) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
}

// RunOnce performs one enrollment sweep over all active automations.
// Per-automation failures are logged and skipped so one broken filter
// cannot starve the rest.
func (e *Enroller) RunOnce(ctx context.Context) error {
	automations, err := e.persistence.ActiveAutomations(ctx)
	if err != nil {
		return fmt.Errorf("list active automations: %w", err)
	}

	for _, automation := range automations {
		if automation.TriggerFilter == nil {
			continue
		}

		err := e.enroll(ctx, automation)
		if err != nil {
			e.logger.ErrorContext(ctx, "Enrollment failed for automation",
				"automation_id", automation.ID, "error", err)
		}
	}

	return nil
}

func (e *Enroller) enroll(ctx context.Context, automation *models.Automation) error {
	audience, err := e.persistence.AudienceByID(ctx, automation.AudienceID)
	if err != nil {
		return fmt.Errorf("fetch audience %s: %w", automation.AudienceID, err)
	}

	trigger, err := e.persistence.FindRoot(ctx, automation.ID)
	if err != nil {
		return fmt.Errorf("fetch trigger step: %w", err)
	}

	child, err := e.persistence.FindChild(ctx, trigger.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrStepNotFound) {
			// A trigger with no child has nowhere to send contacts.
			return nil
		}

		return fmt.Errorf("fetch trigger child: %w", err)
	}

	predicate, err := filter.Compile(automation.TriggerFilter, audience)
	if err != nil {
		return fmt.Errorf("compile trigger filter: %w", err)
	}

	enrolled := 0
	cursor := ""

	for {
		contacts, err := e.persistence.ContactsByPredicate(ctx, automation.AudienceID, predicate, cursor, e.pageSize)
		if err != nil {
			return fmt.Errorf("list matching contacts: %w", err)
		}

		for _, contact := range contacts {
			admitted, err := e.admit(ctx, automation, trigger, child, contact)
			if err != nil {
				return err
			}

			if admitted {
				enrolled++
			}
		}

		if len(contacts) < e.pageSize {
			break
		}

		cursor = contacts[len(contacts)-1].ID
	}

	if enrolled > 0 {
		e.logger.InfoContext(ctx, "Enrolled contacts into automation",
			"automation_id", automation.ID, "count", enrolled)
	}

	return nil
}

// admit enrolls a single contact. The trigger completion doubles as the
// enrollment marker: once recorded, later sweeps skip the contact even
// if it still matches the filter.
func (e *Enroller) admit(ctx context.Context, automation *models.Automation, trigger, child *models.AutomationStep, contact *models.Contact) (bool, error) {
	done, err := e.persistence.HasCompleted(ctx, contact.ID, trigger.ID)
	if err != nil {
		return false, fmt.Errorf("check trigger completion: %w", err)
	}

	if done {
		return false, nil
	}

	err = e.persistence.RecordCompletion(ctx, contact.ID, trigger.ID)
	if err != nil {
		return false, fmt.Errorf("record trigger completion: %w", err)
	}

	available := events.StepAvailable{
		BaseEvent: events.NewBaseEvent(events.StepAvailableEvent, automation.ID),
		StepID:    child.ID,
		ContactID: contact.ID,
	}

	err = e.publisher.Publish(ctx, automation.ID, available)
	if err != nil {
		return false, fmt.Errorf("publish step available: %w", err)
	}

	return true, nil
}
