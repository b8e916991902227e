package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence/memory"
	"github.com/dripkit/dripkit/pkg/registry"
	"github.com/dripkit/dripkit/pkg/segment"
	"github.com/dripkit/dripkit/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultExecutors(registry.Dependencies{
		Tags:      store,
		Templates: store,
		Senders:   store,
	})

	handlers := web.NewAPIHandlers(
		store,
		segment.NewService(store),
		validator.New(validator.WithRequiredStructEnabled()),
		reg,
	)

	app := fiber.New()

	a := app.Group("/audiences")
	a.Get("/", handlers.GetAudiences)
	a.Post("/", handlers.CreateAudience)
	a.Get("/:id", handlers.GetAudience)
	a.Post("/:id/contacts", handlers.CreateContact)
	a.Get("/:id/tags", handlers.GetTags)
	a.Post("/:id/tags", handlers.CreateTag)
	a.Post("/:id/segments/preview", handlers.PreviewSegment)
	a.Get("/:id/automations", handlers.GetAutomations)
	a.Post("/:id/automations", handlers.CreateAutomation)

	au := app.Group("/automations")
	au.Get("/:id", handlers.GetAutomation)
	au.Patch("/:id", handlers.UpdateAutomation)
	au.Get("/:id/steps", handlers.GetAutomationSteps)
	au.Post("/:id/steps", handlers.CreateStep)

	app.Patch("/steps/:id", handlers.UpdateStep)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body []byte

	if str, ok := payload.(string); ok {
		body = []byte(str)
	} else if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func seedAudience(t *testing.T, store *memory.Persistence) *models.Audience {
	t.Helper()

	audience := &models.Audience{
		Name: "Newsletter",
		PropertyDefinitions: []models.PropertyDefinition{
			{Key: "plan", Type: models.PropertyTypeText},
		},
	}
	require.NoError(t, store.SaveAudience(context.Background(), audience))

	return audience
}

func TestCreateAudience(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateAudienceRequest{
				Name: "Newsletter",
				PropertyDefinitions: []models.PropertyDefinition{
					{Key: "plan", Type: models.PropertyTypeText},
				},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "validation error - missing name",
			requestBody:    web.CreateAudienceRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			resp, raw := doJSON(t, app, http.MethodPost, "/audiences/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var audience models.Audience
				require.NoError(t, json.Unmarshal(raw, &audience))
				assert.NotEmpty(t, audience.ID)
				assert.Equal(t, "Newsletter", audience.Name)
			}
		})
	}
}

func TestCreateContactRejectsUndeclaredProperty(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	resp, _ := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/contacts", web.CreateContactRequest{
		Email:      "alice@example.com",
		Properties: map[string]any{"favorite_color": "green"},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateContact(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	resp, raw := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/contacts", web.CreateContactRequest{
		Email:      "alice@example.com",
		FirstName:  "Alice",
		Properties: map[string]any{"plan": "pro"},
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var contact models.Contact
	require.NoError(t, json.Unmarshal(raw, &contact))
	assert.NotEmpty(t, contact.ID)
	assert.Equal(t, audience.ID, contact.AudienceID)
}

func TestPreviewSegment(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	for _, contact := range []*models.Contact{
		{ID: "contact-1", AudienceID: audience.ID, Email: "alice@example.com", FirstName: "Alice"},
		{ID: "contact-2", AudienceID: audience.ID, Email: "bob@example.com", FirstName: "Bob"},
	} {
		require.NoError(t, store.SaveContact(context.Background(), contact))
	}

	resp, raw := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/segments/preview", web.PreviewSegmentRequest{
		Filter: &models.FilterGroup{
			Type: models.GroupAnd,
			Conditions: []models.Condition{
				{Field: models.FieldFirstName, Operation: models.OperationEq, Value: "Alice"},
			},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result segment.PreviewResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Len(t, result.Contacts, 1)
	assert.Equal(t, "contact-1", result.Contacts[0].ID)
}

func TestPreviewSegmentUnknownField(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	resp, _ := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/segments/preview", web.PreviewSegmentRequest{
		Filter: &models.FilterGroup{
			Type: models.GroupAnd,
			Conditions: []models.Condition{
				{Field: "properties.favorite_color", Operation: models.OperationEq, Value: "green"},
			},
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreviewSegmentUnknownAudience(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/audiences/missing/segments/preview", web.PreviewSegmentRequest{
		Filter: &models.FilterGroup{Type: models.GroupAnd},
	})

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAutomationValidatesTriggerFilter(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	resp, _ := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/automations", web.CreateAutomationRequest{
		Name: "Welcome series",
		TriggerFilter: &models.FilterGroup{
			Type: models.GroupAnd,
			Conditions: []models.Condition{
				{Field: "properties.favorite_color", Operation: models.OperationEq, Value: "green"},
			},
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutomationLifecycle(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	// Create the automation.
	resp, raw := doJSON(t, app, http.MethodPost, "/audiences/"+audience.ID+"/automations", web.CreateAutomationRequest{
		Name: "Welcome series",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var automation models.Automation
	require.NoError(t, json.Unmarshal(raw, &automation))
	assert.False(t, automation.Active)

	// Add the trigger; an end step comes with it.
	resp, raw = doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:    "trigger",
		Subtype: models.SubtypeTriggerSegment,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var trigger models.AutomationStep
	require.NoError(t, json.Unmarshal(raw, &trigger))

	// Splice an action between trigger and end.
	tag := &models.Tag{AudienceID: audience.ID, Name: "welcomed"}
	require.NoError(t, store.SaveTag(context.Background(), tag))

	resp, raw = doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:          "action",
		Subtype:       models.SubtypeActionAddTag,
		ParentID:      trigger.ID,
		Configuration: map[string]any{"tag_id": tag.ID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var action models.AutomationStep
	require.NoError(t, json.Unmarshal(raw, &action))
	require.NotNil(t, action.ParentID)
	assert.Equal(t, trigger.ID, *action.ParentID)

	// Activate.
	resp, raw = doJSON(t, app, http.MethodPatch, "/automations/"+automation.ID, web.UpdateAutomationRequest{
		Active: boolPtr(true),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Automation
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.True(t, updated.Active)

	// The tree lists trigger, action and end.
	resp, raw = doJSON(t, app, http.MethodGet, "/automations/"+automation.ID+"/steps", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var steps []*models.AutomationStep
	require.NoError(t, json.Unmarshal(raw, &steps))
	require.Len(t, steps, 3)
	assert.Equal(t, trigger.ID, steps[0].ID)
}

func TestCreateStepRejectsInvalidConfiguration(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series"}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	trigger, err := store.CreateTrigger(context.Background(), automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	// add_tag without a tag_id fails schema validation.
	resp, _ := doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:     "action",
		Subtype:  models.SubtypeActionAddTag,
		ParentID: trigger.ID,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateStepRejectsEndParent(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series"}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	trigger, err := store.CreateTrigger(context.Background(), automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	end, err := store.FindChild(context.Background(), trigger.ID)
	require.NoError(t, err)

	tag := &models.Tag{AudienceID: audience.ID, Name: "welcomed"}
	require.NoError(t, store.SaveTag(context.Background(), tag))

	resp, _ := doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:          "action",
		Subtype:       models.SubtypeActionAddTag,
		ParentID:      end.ID,
		Configuration: map[string]any{"tag_id": tag.ID},
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateStepRejectsSecondTrigger(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series"}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	_, err := store.CreateTrigger(context.Background(), automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	resp, _ := doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:    "trigger",
		Subtype: models.SubtypeTriggerSegment,
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateIfElseStep(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series"}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	trigger, err := store.CreateTrigger(context.Background(), automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	resp, raw := doJSON(t, app, http.MethodPost, "/automations/"+automation.ID+"/steps", web.CreateStepRequest{
		Type:     "rule",
		Subtype:  models.SubtypeRuleIfElse,
		ParentID: trigger.ID,
		Configuration: map[string]any{
			"filter": map[string]any{
				"type": "and",
				"conditions": []map[string]any{
					{"field": "firstName", "operation": "eq", "value": "Alice"},
				},
			},
		},
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule models.AutomationStep
	require.NoError(t, json.Unmarshal(raw, &rule))

	// The previous occupant moved onto YES; NO got a placeholder action
	// terminated by a synthesized end step.
	yes, err := store.FindBranchChild(context.Background(), rule.ID, models.BranchYes)
	require.NoError(t, err)
	assert.Equal(t, models.StepTypeEnd, yes.Type)

	no, err := store.FindBranchChild(context.Background(), rule.ID, models.BranchNo)
	require.NoError(t, err)
	assert.Equal(t, models.StepTypeAction, no.Type)
	assert.Equal(t, models.SubtypeActionPlaceholder, no.Subtype)

	noEnd, err := store.FindChild(context.Background(), no.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepTypeEnd, noEnd.Type)
}

func TestUpdateStepConfiguration(t *testing.T) {
	app, store := setupTestApp(t)
	audience := seedAudience(t, store)

	automation := &models.Automation{AudienceID: audience.ID, Name: "Welcome series"}
	require.NoError(t, store.SaveAutomation(context.Background(), automation))

	trigger, err := store.CreateTrigger(context.Background(), automation.ID, models.SubtypeTriggerSegment, nil)
	require.NoError(t, err)

	tag := &models.Tag{AudienceID: audience.ID, Name: "welcomed"}
	require.NoError(t, store.SaveTag(context.Background(), tag))

	step, err := store.CreateStep(context.Background(), automation.ID, trigger.ID, nil, models.StepTypeAction, models.SubtypeActionAddTag, map[string]any{"tag_id": tag.ID})
	require.NoError(t, err)

	other := &models.Tag{AudienceID: audience.ID, Name: "onboarded"}
	require.NoError(t, store.SaveTag(context.Background(), other))

	resp, _ := doJSON(t, app, http.MethodPatch, "/steps/"+step.ID, web.UpdateStepRequest{
		Configuration: map[string]any{"tag_id": other.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reloaded, err := store.FindByID(context.Background(), step.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, reloaded.Configuration["tag_id"])
}

func boolPtr(b bool) *bool {
	return &b
}
