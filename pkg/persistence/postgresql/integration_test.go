package postgresql_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/persistence/postgresql"
)

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if os.Getenv("DRIPKIT_PG_INTEGRATION") == "" {
		t.Skip("set DRIPKIT_PG_INTEGRATION=1 to run PostgreSQL integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dripkit_test"),
		postgres.WithUsername("dripkit"),
		postgres.WithPassword("dripkit"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	databaseURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close(ctx))
		require.NoError(t, container.Terminate(ctx))
		cancel()
	})

	return store, ctx
}

func TestIntegration_SegmentationAndGraphLifecycle(t *testing.T) {
	store, ctx := setupTestDB(t)

	audience := &models.Audience{
		Name: "Newsletter",
		PropertyDefinitions: []models.PropertyDefinition{
			{Key: "plan", Type: models.PropertyTypeText},
			{Key: "seats", Type: models.PropertyTypeFloat},
		},
	}
	require.NoError(t, store.SaveAudience(ctx, audience))

	alice := &models.Contact{
		AudienceID: audience.ID,
		Email:      "alice@example.com",
		FirstName:  "Alice",
		Properties: map[string]any{"plan": "pro", "seats": float64(12)},
	}
	bob := &models.Contact{
		AudienceID: audience.ID,
		Email:      "bob@other.net",
		FirstName:  "Bob",
		Properties: map[string]any{"plan": "free"},
	}
	require.NoError(t, store.SaveContact(ctx, alice))
	require.NoError(t, store.SaveContact(ctx, bob))

	vip := &models.Tag{AudienceID: audience.ID, Name: "vip"}
	require.NoError(t, store.SaveTag(ctx, vip))
	require.NoError(t, store.AttachTag(ctx, alice.ID, vip.ID))

	// Attaching twice must not error.
	require.NoError(t, store.AttachTag(ctx, alice.ID, vip.ID))

	group := &models.FilterGroup{
		Type: models.GroupOr,
		Conditions: []models.Condition{
			{Field: "properties.plan", Operation: models.OperationEq, Value: "pro"},
			{Field: models.FieldTags, Operation: models.OperationEq, Value: vip.ID},
		},
	}

	predicate, err := filter.Compile(group, audience)
	require.NoError(t, err)

	matched, err := store.ContactsByPredicate(ctx, audience.ID, predicate, "", 10)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, alice.ID, matched[0].ID)
	assert.Equal(t, []string{vip.ID}, matched[0].Tags)

	// The SQL rendering and the in-memory rendering agree per contact.
	assert.True(t, predicate.Match(matched[0]))
	assert.False(t, predicate.Match(bob))

	automation := &models.Automation{
		AudienceID:    audience.ID,
		Name:          "Welcome flow",
		Active:        true,
		TriggerFilter: group,
	}
	require.NoError(t, store.SaveAutomation(ctx, automation))

	trigger, err := store.CreateTrigger(ctx, automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	_, err = store.CreateTrigger(ctx, automation.ID, models.SubtypeTriggerSegment, nil)
	assert.ErrorIs(t, err, persistence.ErrTriggerExists)

	action, err := store.CreateStep(ctx, automation.ID, trigger.ID, nil, models.StepTypeAction, models.SubtypeActionAddTag, map[string]any{"tag_id": vip.ID})
	require.NoError(t, err)

	rule, err := store.CreateIfElseStep(ctx, automation.ID, trigger.ID, nil, map[string]any{
		"filter": map[string]any{"type": "and"},
	})
	require.NoError(t, err)

	// Chain: trigger -> rule; YES -> action -> end; NO -> placeholder -> end.
	child, err := store.FindChild(ctx, trigger.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, child.ID)

	yes, err := store.FindBranchChild(ctx, rule.ID, models.BranchYes)
	require.NoError(t, err)
	assert.Equal(t, action.ID, yes.ID)

	no, err := store.FindBranchChild(ctx, rule.ID, models.BranchNo)
	require.NoError(t, err)
	assert.Equal(t, models.SubtypeActionPlaceholder, no.Subtype)

	noEnd, err := store.FindChild(ctx, no.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTypeEnd, noEnd.Type)

	end, err := store.FindChild(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTypeEnd, end.Type)

	_, err = store.CreateStep(ctx, automation.ID, end.ID, nil, models.StepTypeAction, models.SubtypeActionAddTag, nil)
	assert.ErrorIs(t, err, persistence.ErrStepNotSpliceable)

	// Completion ledger.
	require.NoError(t, store.RecordCompletion(ctx, alice.ID, trigger.ID))
	require.NoError(t, store.RecordCompletion(ctx, alice.ID, trigger.ID))

	done, err := store.HasCompleted(ctx, alice.ID, trigger.ID)
	require.NoError(t, err)
	assert.True(t, done)

	completions, err := store.CompletionsByContact(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, completions, 1)
}

func TestIntegration_CursorPagination(t *testing.T) {
	store, ctx := setupTestDB(t)

	audience := &models.Audience{Name: "Paging"}
	require.NoError(t, store.SaveAudience(ctx, audience))

	for i := 0; i < 5; i++ {
		contact := &models.Contact{
			AudienceID: audience.ID,
			Email:      string(rune('a'+i)) + "@example.com",
		}
		require.NoError(t, store.SaveContact(ctx, contact))
	}

	predicate, err := filter.Compile(&models.FilterGroup{Type: models.GroupAnd}, audience)
	require.NoError(t, err)

	first, err := store.ContactsByPredicate(ctx, audience.ID, predicate, "", 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := store.ContactsByPredicate(ctx, audience.ID, predicate, first[2].ID, 3)
	require.NoError(t, err)
	require.Len(t, second, 2)

	for _, contact := range second {
		assert.Greater(t, contact.ID, first[2].ID)
	}
}
