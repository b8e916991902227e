package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dripkit/dripkit/pkg/automation"
	"github.com/dripkit/dripkit/pkg/eventbus"
	"github.com/dripkit/dripkit/pkg/events"
	"github.com/dripkit/dripkit/pkg/otelhelper"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/registry"
)

type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	registry *registry.Registry,
) *WorkerManager {
	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "dripkit-worker", "worker_id", id),
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
	}
}

// WithTracer enables a span around every step execution.
func (w *WorkerManager) WithTracer(tracer trace.Tracer) *WorkerManager {
	w.tracer = tracer

	return w
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.StepAvailableEvent, w.handleStepAvailable)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleStepAvailable(ctx context.Context, event any) error {
	availableEvent, ok := event.(*events.StepAvailable)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for StepAvailable")

		return nil
	}

	logger := w.logger.With(
		"automation_id", availableEvent.AutomationID,
		"step_id", availableEvent.StepID,
		"contact_id", availableEvent.ContactID,
		"event_id", availableEvent.ID,
	)

	logger.InfoContext(ctx, "Processing step available event")

	var span trace.Span
	if w.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "execute_step",
			attribute.String(otelhelper.AutomationIDKey, availableEvent.AutomationID),
			attribute.String(otelhelper.StepIDKey, availableEvent.StepID),
			attribute.String(otelhelper.ContactIDKey, availableEvent.ContactID),
			attribute.String(otelhelper.WorkerIDKey, w.id),
		)
		defer span.End()
	}

	scheduler := automation.NewScheduler(w.persistence, w.registry)

	eventsToPublish, err := scheduler.ExecuteStep(ctx, logger, availableEvent.StepID, availableEvent.ContactID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute automation step", "error", err)

		if span != nil {
			otelhelper.SetError(span, err)
		}

		failedEvent := events.StepFailed{
			BaseEvent: events.NewBaseEvent(events.StepFailedEvent, availableEvent.AutomationID),
			StepID:    availableEvent.StepID,
			ContactID: availableEvent.ContactID,
			Error:     err.Error(),
		}
		failedEvent.WorkerID = w.id

		publishErr := w.eventBus.Publish(ctx, availableEvent.AutomationID, failedEvent)
		if publishErr != nil {
			logger.ErrorContext(ctx, "Failed to publish step failed event", "error", publishErr)
		}

		// Returning the error lets the bus redeliver the job.
		return err
	}

	for _, followUp := range eventsToPublish {
		publishErr := w.eventBus.Publish(ctx, availableEvent.AutomationID, followUp)
		if publishErr != nil {
			logger.ErrorContext(ctx, "Failed to publish automation event", "error", publishErr, "event", followUp)

			return publishErr
		}
	}

	return nil
}
