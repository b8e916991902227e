// Package web provides HTTP request and response types for the audience
// and automation API.
package web

import "github.com/dripkit/dripkit/pkg/models"

// CreateAudienceRequest represents the request body for creating an audience.
type CreateAudienceRequest struct {
	Name                string                      `json:"name"                 validate:"required,min=1"`
	PropertyDefinitions []models.PropertyDefinition `json:"property_definitions" validate:"omitempty,dive"`
}

// CreateContactRequest represents the request body for creating a contact
// inside an audience.
type CreateContactRequest struct {
	Email      string         `json:"email"      validate:"required,email"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	Properties map[string]any `json:"properties"`
}

// CreateTagRequest represents the request body for creating a tag.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

// PreviewSegmentRequest represents the request body for previewing which
// contacts a filter selects. Cursor and page size drive keyset pagination.
type PreviewSegmentRequest struct {
	Filter   *models.FilterGroup `json:"filter"    validate:"required"`
	Cursor   string              `json:"cursor"`
	PageSize int                 `json:"page_size" validate:"omitempty,min=1"`
}

// CreateAutomationRequest represents the request body for creating a new
// automation. The trigger filter is optional; without one the automation
// only accepts manual enrollment.
type CreateAutomationRequest struct {
	Name          string              `json:"name"           validate:"required,min=3"`
	TriggerFilter *models.FilterGroup `json:"trigger_filter"`
}

// UpdateAutomationRequest represents the request body for updating an
// existing automation. All fields are optional to support partial updates.
type UpdateAutomationRequest struct {
	Name          *string             `json:"name,omitempty" validate:"omitempty,min=3"`
	Active        *bool               `json:"active,omitempty"`
	TriggerFilter *models.FilterGroup `json:"trigger_filter,omitempty"`
}

// CreateStepRequest represents the request body for adding a step to an
// automation tree. Trigger steps take no parent; every other step is
// spliced into the slot named by parent_id and branch_index.
type CreateStepRequest struct {
	Type          string         `json:"type"          validate:"required,oneof=trigger rule action"`
	Subtype       string         `json:"subtype"       validate:"required"`
	ParentID      string         `json:"parent_id"     validate:"required_unless=Type trigger"`
	BranchIndex   *int           `json:"branch_index"  validate:"omitempty,oneof=0 1"`
	Configuration map[string]any `json:"configuration"`
}

// UpdateStepRequest represents the request body for replacing a step's
// configuration.
type UpdateStepRequest struct {
	Configuration map[string]any `json:"configuration" validate:"required"`
}

// CreateEmailTemplateRequest represents the request body for creating an
// email template.
type CreateEmailTemplateRequest struct {
	Name    string `json:"name"    validate:"required,min=1"`
	Subject string `json:"subject" validate:"required"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// CreateSenderIdentityRequest represents the request body for registering
// a sender identity.
type CreateSenderIdentityRequest struct {
	FromName      string `json:"from_name"`
	FromEmail     string `json:"from_email"     validate:"required,email"`
	SendingDomain string `json:"sending_domain"`
}
