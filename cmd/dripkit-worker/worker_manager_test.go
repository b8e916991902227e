package main

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripkit/dripkit/pkg/eventbus"
	"github.com/dripkit/dripkit/pkg/events"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence/memory"
	"github.com/dripkit/dripkit/pkg/protocol"
	"github.com/dripkit/dripkit/pkg/registry"
)

type mockEventBus struct {
	publishedEvents []eventbus.Event
}

func (m *mockEventBus) Handle(_ events.EventType, _ eventbus.EventHandler) error {
	return nil
}

func (m *mockEventBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	m.publishedEvents = append(m.publishedEvents, event)

	return nil
}

func (m *mockEventBus) Subscribe(_ context.Context) error {
	return nil
}

func (m *mockEventBus) Close() error {
	return nil
}

func (m *mockEventBus) GenerateID() string {
	return "mock-event-id"
}

type noopMailer struct{}

func (noopMailer) Send(_ context.Context, _ protocol.SendRequest) (string, error) {
	return "msg-1", nil
}

type noopAttribution struct{}

func (noopAttribution) RecordSend(_ context.Context, _, _ string) error { return nil }

func (noopAttribution) LastMessageID(_ context.Context, _ string) (string, error) {
	return "", nil
}

func newTestWorkerManager(store *memory.Persistence) (*WorkerManager, *mockEventBus) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultExecutors(registry.Dependencies{
		Tags:        store,
		Templates:   store,
		Senders:     store,
		Mailer:      noopMailer{},
		Attribution: noopAttribution{},
	})

	eventBus := &mockEventBus{}

	return NewWorkerManager("test-worker", store, eventBus, logger, reg), eventBus
}

func TestNewWorkerManager(t *testing.T) {
	store := memory.NewPersistence()
	wm, eventBus := newTestWorkerManager(store)

	assert.NotNil(t, wm)
	assert.Equal(t, "test-worker", wm.id)
	assert.Equal(t, eventBus, wm.eventBus)
	assert.NotNil(t, wm.logger)
}

func TestHandleStepAvailableInvalidEvent(t *testing.T) {
	wm, eventBus := newTestWorkerManager(memory.NewPersistence())

	// Unexpected payloads are dropped, not retried.
	err := wm.handleStepAvailable(context.Background(), "invalid-event")

	assert.NoError(t, err)
	assert.Empty(t, eventBus.publishedEvents)
}

func TestHandleStepAvailableStepNotFound(t *testing.T) {
	wm, eventBus := newTestWorkerManager(memory.NewPersistence())

	available := &events.StepAvailable{
		BaseEvent: events.NewBaseEvent(events.StepAvailableEvent, "missing-automation"),
		StepID:    "missing-step",
		ContactID: "missing-contact",
	}

	err := wm.handleStepAvailable(context.Background(), available)

	require.Error(t, err)
	require.Len(t, eventBus.publishedEvents, 1)

	failed, ok := eventBus.publishedEvents[0].(events.StepFailed)
	require.True(t, ok)
	assert.Equal(t, "missing-step", failed.StepID)
	assert.Equal(t, "test-worker", failed.WorkerID)
}

func TestHandleStepAvailablePublishesFollowUps(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	wm, eventBus := newTestWorkerManager(store)

	audience := &models.Audience{Name: "Test"}
	require.NoError(t, store.SaveAudience(ctx, audience))

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series", Active: true}
	require.NoError(t, store.SaveAutomation(ctx, automation))

	trigger, err := store.CreateTrigger(ctx, automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	contact := &models.Contact{AudienceID: audience.ID, Email: "alice@example.com"}
	require.NoError(t, store.SaveContact(ctx, contact))

	available := &events.StepAvailable{
		BaseEvent: events.NewBaseEvent(events.StepAvailableEvent, automation.ID),
		StepID:    trigger.ID,
		ContactID: contact.ID,
	}

	require.NoError(t, wm.handleStepAvailable(ctx, available))

	// Trigger pass-through: one completion plus the end step enqueue.
	require.Len(t, eventBus.publishedEvents, 2)
	assert.Equal(t, events.StepCompletedEvent, eventBus.publishedEvents[0].GetType())
	assert.Equal(t, events.StepAvailableEvent, eventBus.publishedEvents[1].GetType())
}
