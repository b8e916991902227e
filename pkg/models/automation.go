package models

import "time"

// StepType is the structural role of a step in the automation tree.
type StepType string

const (
	StepTypeTrigger StepType = "trigger"
	StepTypeRule    StepType = "rule"
	StepTypeAction  StepType = "action"
	StepTypeEnd     StepType = "end"
)

// Step subtypes dispatched through the executor registry.
const (
	SubtypeTriggerSegment  = "trigger:segment"
	SubtypeRuleIfElse      = "rule:if_else"
	SubtypeActionSendEmail = "action:send_email"
	SubtypeActionAddTag    = "action:add_tag"
	SubtypeActionRemoveTag = "action:remove_tag"
	SubtypeEnd             = "end"

	// SubtypeActionPlaceholder fills the NO branch of a freshly created
	// if/else rule until the author configures a real action. It executes
	// as a no-op.
	SubtypeActionPlaceholder = "action:placeholder"
)

// Branch indexes under a rule:if_else step.
const (
	BranchNo  = 0
	BranchYes = 1
)

// Automation is a named workflow attached to an audience. Its steps form a
// tree rooted at a single trigger step.
type Automation struct {
	ID         string `json:"id"`
	AudienceID string `json:"audience_id" validate:"required"`
	Name       string `json:"name"        validate:"required,min=3"`
	Active     bool   `json:"active"`
	// TriggerFilter selects the contacts the enroller admits into the
	// automation. Nil means manual enrollment only.
	TriggerFilter *FilterGroup `json:"trigger_filter,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// AutomationStep is one node of the automation tree. Steps point at their
// parent; only children of a rule:if_else step carry a branch index
// (1 = YES, 0 = NO).
type AutomationStep struct {
	ID            string         `json:"id"`
	AutomationID  string         `json:"automation_id" validate:"required"`
	Type          StepType       `json:"type"          validate:"required"`
	Subtype       string         `json:"subtype"       validate:"required"`
	Configuration map[string]any `json:"configuration"`
	ParentID      *string        `json:"parent_id"`
	BranchIndex   *int           `json:"branch_index"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsRule reports whether the step branches traversal.
func (s *AutomationStep) IsRule() bool {
	return s.Type == StepTypeRule
}

// IsEnd reports whether the step terminates traversal.
func (s *AutomationStep) IsEnd() bool {
	return s.Type == StepTypeEnd
}

// CompletionStatus is the terminal state of a (contact, step) execution.
type CompletionStatus string

// StatusCompleted is the only persisted completion status; the ledger is
// append-only and rows are never updated.
const StatusCompleted CompletionStatus = "completed"

// ContactAutomationStep is one row of the completion ledger: the audit trail
// and idempotency signal that a contact has passed through a step.
type ContactAutomationStep struct {
	ContactID        string           `json:"contact_id"`
	AutomationStepID string           `json:"automation_step_id"`
	Status           CompletionStatus `json:"status"`
	CompletedAt      time.Time        `json:"completed_at"`
}

// EmailTemplate is a stored message body referenced by send-email steps.
type EmailTemplate struct {
	ID         string    `json:"id"`
	AudienceID string    `json:"audience_id"`
	Name       string    `json:"name" validate:"required,min=1"`
	Subject    string    `json:"subject"`
	HTML       string    `json:"html"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SenderIdentity is a verified from-address plus sending domain referenced
// by send-email steps.
type SenderIdentity struct {
	ID            string    `json:"id"`
	AudienceID    string    `json:"audience_id"`
	FromName      string    `json:"from_name"`
	FromEmail     string    `json:"from_email" validate:"required,email"`
	SendingDomain string    `json:"sending_domain"`
	CreatedAt     time.Time `json:"created_at"`
}
