// Package persistence provides the data storage abstraction layer for
// audiences, contacts, automations and the completion ledger.
package persistence

import (
	"context"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
)

type AudienceRepository interface {
	Audiences(ctx context.Context) ([]*models.Audience, error)
	AudienceByID(ctx context.Context, id string) (*models.Audience, error)
	SaveAudience(ctx context.Context, audience *models.Audience) error
}

type ContactRepository interface {
	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	SaveContact(ctx context.Context, contact *models.Contact) error

	// ContactsByPredicate lists audience contacts matching the compiled
	// predicate, ordered by id ascending, starting after afterID (empty
	// string starts from the beginning), at most limit rows.
	ContactsByPredicate(ctx context.Context, audienceID string, predicate *filter.Predicate, afterID string, limit int) ([]*models.Contact, error)

	// AttachTag and DetachTag are idempotent membership mutations.
	AttachTag(ctx context.Context, contactID, tagID string) error
	DetachTag(ctx context.Context, contactID, tagID string) error
}

type TagRepository interface {
	TagByID(ctx context.Context, id string) (*models.Tag, error)
	TagsByAudience(ctx context.Context, audienceID string) ([]*models.Tag, error)
	SaveTag(ctx context.Context, tag *models.Tag) error
}

type AutomationRepository interface {
	AutomationByID(ctx context.Context, id string) (*models.Automation, error)
	AutomationsByAudience(ctx context.Context, audienceID string) ([]*models.Automation, error)
	ActiveAutomations(ctx context.Context) ([]*models.Automation, error)
	SaveAutomation(ctx context.Context, automation *models.Automation) error
}

// AutomationStepRepository stores the automation tree. All mutations that
// touch more than one row (the splices) are atomic.
type AutomationStepRepository interface {
	FindByID(ctx context.Context, id string) (*models.AutomationStep, error)
	FindByParentID(ctx context.Context, parentID string) ([]*models.AutomationStep, error)

	// FindChild returns the sole branch-less child of a step, or
	// ErrStepNotFound when the step has none.
	FindChild(ctx context.Context, parentID string) (*models.AutomationStep, error)

	// FindBranchChild returns the child on the given branch of a rule step,
	// or ErrStepNotFound when the branch is absent.
	FindBranchChild(ctx context.Context, parentID string, branchIndex int) (*models.AutomationStep, error)

	// FindRoot returns the automation's trigger step.
	FindRoot(ctx context.Context, automationID string) (*models.AutomationStep, error)

	// CreateTrigger creates the root trigger step plus its end child.
	CreateTrigger(ctx context.Context, automationID, subtype string, config map[string]any) (*models.AutomationStep, error)

	// CreateStep splices a new step between the parent (on the given
	// branch, nil for the plain child slot) and the step currently
	// occupying that slot. End steps cannot take children.
	CreateStep(ctx context.Context, automationID, parentID string, branchIndex *int, stepType models.StepType, subtype string, config map[string]any) (*models.AutomationStep, error)

	// CreateIfElseStep splices a rule step into the slot: the step
	// previously there is re-parented onto the YES branch and a fresh end
	// step is created on the NO branch.
	CreateIfElseStep(ctx context.Context, automationID, parentID string, branchIndex *int, config map[string]any) (*models.AutomationStep, error)

	UpdateConfiguration(ctx context.Context, id string, config map[string]any) error
}

// CompletionRepository is the append-only (contact, step) completion ledger.
type CompletionRepository interface {
	// RecordCompletion inserts the completion row; recording an already
	// recorded pair is a no-op.
	RecordCompletion(ctx context.Context, contactID, stepID string) error
	HasCompleted(ctx context.Context, contactID, stepID string) (bool, error)
	CompletionsByContact(ctx context.Context, contactID string) ([]*models.ContactAutomationStep, error)
}

type EmailTemplateRepository interface {
	EmailTemplateByID(ctx context.Context, id string) (*models.EmailTemplate, error)
	EmailTemplatesByAudience(ctx context.Context, audienceID string) ([]*models.EmailTemplate, error)
	SaveEmailTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteEmailTemplate(ctx context.Context, id string) error
}

type SenderIdentityRepository interface {
	SenderIdentityByID(ctx context.Context, id string) (*models.SenderIdentity, error)
	SaveSenderIdentity(ctx context.Context, sender *models.SenderIdentity) error
}

type Persistence interface {
	AudienceRepository
	ContactRepository
	TagRepository
	AutomationRepository
	AutomationStepRepository
	CompletionRepository
	EmailTemplateRepository
	SenderIdentityRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
