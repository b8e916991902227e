// Package web provides HTTP handlers and REST API endpoints for audience
// and automation management.
package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/registry"
	"github.com/dripkit/dripkit/pkg/segment"
)

type APIHandlers struct {
	persistence persistence.Persistence
	segments    *segment.Service
	validator   *validator.Validate
	registry    *registry.Registry
}

func NewAPIHandlers(
	store persistence.Persistence,
	segments *segment.Service,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		persistence: store,
		segments:    segments,
		validator:   validator,
		registry:    registry,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Dripkit API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "Dripkit API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetAudiences(c fiber.Ctx) error {
	audiences, err := h.persistence.Audiences(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(audiences)
}

func (h *APIHandlers) CreateAudience(c fiber.Ctx) error {
	var req CreateAudienceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	audience := &models.Audience{
		Name:                req.Name,
		PropertyDefinitions: req.PropertyDefinitions,
	}

	if err := h.persistence.SaveAudience(c.Context(), audience); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(audience)
}

func (h *APIHandlers) GetAudience(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(audience)
}

func (h *APIHandlers) CreateContact(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateContactRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Reject property keys the audience schema does not declare.
	for key := range req.Properties {
		if _, ok := audience.PropertyTypeOf(key); !ok {
			return badRequest(c, "Unknown property: "+key)
		}
	}

	contact := &models.Contact{
		AudienceID: audience.ID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Properties: req.Properties,
	}

	if err := h.persistence.SaveContact(c.Context(), contact); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(contact)
}

func (h *APIHandlers) GetContact(c fiber.Ctx) error {
	contact, err := h.persistence.ContactByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(contact)
}

func (h *APIHandlers) GetTags(c fiber.Ctx) error {
	tags, err := h.persistence.TagsByAudience(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(tags)
}

func (h *APIHandlers) CreateTag(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateTagRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tag := &models.Tag{
		AudienceID: audience.ID,
		Name:       req.Name,
	}

	if err := h.persistence.SaveTag(c.Context(), tag); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(tag)
}

func (h *APIHandlers) PreviewSegment(c fiber.Ctx) error {
	var req PreviewSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.segments.Preview(c.Context(), c.Params("id"), req.Filter, req.Cursor, req.PageSize)
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetAutomations(c fiber.Ctx) error {
	automations, err := h.persistence.AutomationsByAudience(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(automations)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := filter.Validate(req.TriggerFilter, audience); err != nil {
		return badRequest(c, err.Error())
	}

	automation := &models.Automation{
		AudienceID:    audience.ID,
		Name:          req.Name,
		TriggerFilter: req.TriggerFilter,
	}

	if err := h.persistence.SaveAutomation(c.Context(), automation); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(automation)
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	automation, err := h.persistence.AutomationByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	automation, err := h.persistence.AutomationByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.Name != nil {
		automation.Name = *req.Name
	}

	if req.Active != nil {
		automation.Active = *req.Active
	}

	if req.TriggerFilter != nil {
		audience, err := h.persistence.AudienceByID(c.Context(), automation.AudienceID)
		if err != nil {
			return handlePersistenceError(c, err)
		}

		if err := filter.Validate(req.TriggerFilter, audience); err != nil {
			return badRequest(c, err.Error())
		}

		automation.TriggerFilter = req.TriggerFilter
	}

	if err := h.persistence.SaveAutomation(c.Context(), automation); err != nil {
		return internalError(c, err)
	}

	return c.JSON(automation)
}

// GetAutomationSteps returns the automation's step tree, root first,
// breadth first.
func (h *APIHandlers) GetAutomationSteps(c fiber.Ctx) error {
	automation, err := h.persistence.AutomationByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	root, err := h.persistence.FindRoot(c.Context(), automation.ID)
	if err != nil {
		if errors.Is(err, persistence.ErrStepNotFound) {
			// No trigger yet: the tree is empty.
			return c.JSON([]*models.AutomationStep{})
		}

		return handlePersistenceError(c, err)
	}

	steps := []*models.AutomationStep{root}
	queue := []string{root.ID}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		children, err := h.persistence.FindByParentID(c.Context(), parentID)
		if err != nil {
			return internalError(c, err)
		}

		for _, child := range children {
			steps = append(steps, child)
			queue = append(queue, child.ID)
		}
	}

	return c.JSON(steps)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	automation, err := h.persistence.AutomationByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var step *models.AutomationStep

	switch models.StepType(req.Type) {
	case models.StepTypeTrigger:
		if req.Subtype != models.SubtypeTriggerSegment {
			return badRequest(c, "Unknown trigger subtype: "+req.Subtype)
		}

		step, err = h.persistence.CreateTrigger(c.Context(), automation.ID, req.Subtype, req.Configuration)
	case models.StepTypeRule:
		if req.Subtype != models.SubtypeRuleIfElse {
			return badRequest(c, "Unknown rule subtype: "+req.Subtype)
		}

		if err := h.validateStepConfiguration(req.Subtype, req.Configuration); err != nil {
			return badRequest(c, err.Error())
		}

		step, err = h.persistence.CreateIfElseStep(c.Context(), automation.ID, req.ParentID, req.BranchIndex, req.Configuration)
	case models.StepTypeAction:
		if err := h.validateStepConfiguration(req.Subtype, req.Configuration); err != nil {
			return badRequest(c, err.Error())
		}

		step, err = h.persistence.CreateStep(c.Context(), automation.ID, req.ParentID, req.BranchIndex, models.StepTypeAction, req.Subtype, req.Configuration)
	default:
		return badRequest(c, "Unknown step type: "+req.Type)
	}

	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	step, err := h.persistence.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if step.Type != models.StepTypeTrigger && step.Type != models.StepTypeEnd {
		if err := h.validateStepConfiguration(step.Subtype, req.Configuration); err != nil {
			return badRequest(c, err.Error())
		}
	}

	if err := h.persistence.UpdateConfiguration(c.Context(), step.ID, req.Configuration); err != nil {
		return handlePersistenceError(c, err)
	}

	step.Configuration = req.Configuration

	return c.JSON(step)
}

func (h *APIHandlers) GetEmailTemplates(c fiber.Ctx) error {
	templates, err := h.persistence.EmailTemplatesByAudience(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(templates)
}

func (h *APIHandlers) CreateEmailTemplate(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateEmailTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template := &models.EmailTemplate{
		AudienceID: audience.ID,
		Name:       req.Name,
		Subject:    req.Subject,
		HTML:       req.HTML,
		Text:       req.Text,
	}

	if err := h.persistence.SaveEmailTemplate(c.Context(), template); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(template)
}

func (h *APIHandlers) GetEmailTemplate(c fiber.Ctx) error {
	template, err := h.persistence.EmailTemplateByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) DeleteEmailTemplate(c fiber.Ctx) error {
	err := h.persistence.DeleteEmailTemplate(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateSenderIdentity(c fiber.Ctx) error {
	audience, err := h.persistence.AudienceByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	var req CreateSenderIdentityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	sender := &models.SenderIdentity{
		AudienceID:    audience.ID,
		FromName:      req.FromName,
		FromEmail:     req.FromEmail,
		SendingDomain: req.SendingDomain,
	}

	if err := h.persistence.SaveSenderIdentity(c.Context(), sender); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(sender)
}

func (h *APIHandlers) GetSenderIdentity(c fiber.Ctx) error {
	sender, err := h.persistence.SenderIdentityByID(c.Context(), c.Params("id"))
	if err != nil {
		return handlePersistenceError(c, err)
	}

	return c.JSON(sender)
}

// validateStepConfiguration checks a step configuration against the
// executor's JSON schema, then asks the factory itself, which catches
// semantic problems the schema cannot express.
func (h *APIHandlers) validateStepConfiguration(subtype string, config map[string]any) error {
	schema, err := h.registry.Schema(subtype)
	if err != nil {
		return fmt.Errorf("unknown step subtype %q", subtype)
	}

	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	configLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var details []string
		for _, validationError := range result.Errors() {
			details = append(details, validationError.String())
		}

		return fmt.Errorf("invalid configuration: %s", strings.Join(details, "; "))
	}

	_, err = h.registry.CreateExecutor(subtype, config)

	return err
}
