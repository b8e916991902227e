package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	audiences   *AudienceRepository
	contacts    *ContactRepository
	tags        *TagRepository
	automations *AutomationRepository
	steps       *StepRepository
	completions *CompletionRepository
	templates   *TemplateRepository
}

// NewPersistence connects, runs migrations and returns the persistence
// layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewPersistenceWithDB(database, logger), nil
}

// NewPersistenceWithDB wraps an existing connection without migrating.
func NewPersistenceWithDB(database *sql.DB, logger *slog.Logger) *Persistence {
	return &Persistence{
		db:          database,
		logger:      logger,
		audiences:   NewAudienceRepository(database, logger),
		contacts:    NewContactRepository(database, logger),
		tags:        NewTagRepository(database, logger),
		automations: NewAutomationRepository(database, logger),
		steps:       NewStepRepository(database, logger),
		completions: NewCompletionRepository(database, logger),
		templates:   NewTemplateRepository(database, logger),
	}
}

func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)

// Audiences

func (p *Persistence) Audiences(ctx context.Context) ([]*models.Audience, error) {
	return p.audiences.GetAll(ctx)
}

func (p *Persistence) AudienceByID(ctx context.Context, id string) (*models.Audience, error) {
	return p.audiences.GetByID(ctx, id)
}

func (p *Persistence) SaveAudience(ctx context.Context, audience *models.Audience) error {
	return p.audiences.Save(ctx, audience)
}

// Contacts

func (p *Persistence) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	return p.contacts.GetByID(ctx, id)
}

func (p *Persistence) SaveContact(ctx context.Context, contact *models.Contact) error {
	return p.contacts.Save(ctx, contact)
}

func (p *Persistence) ContactsByPredicate(ctx context.Context, audienceID string, predicate *filter.Predicate, afterID string, limit int) ([]*models.Contact, error) {
	return p.contacts.ListByPredicate(ctx, audienceID, predicate, afterID, limit)
}

func (p *Persistence) AttachTag(ctx context.Context, contactID, tagID string) error {
	return p.contacts.AttachTag(ctx, contactID, tagID)
}

func (p *Persistence) DetachTag(ctx context.Context, contactID, tagID string) error {
	return p.contacts.DetachTag(ctx, contactID, tagID)
}

// Tags

func (p *Persistence) TagByID(ctx context.Context, id string) (*models.Tag, error) {
	return p.tags.GetByID(ctx, id)
}

func (p *Persistence) TagsByAudience(ctx context.Context, audienceID string) ([]*models.Tag, error) {
	return p.tags.GetByAudience(ctx, audienceID)
}

func (p *Persistence) SaveTag(ctx context.Context, tag *models.Tag) error {
	return p.tags.Save(ctx, tag)
}

// Automations

func (p *Persistence) AutomationByID(ctx context.Context, id string) (*models.Automation, error) {
	return p.automations.GetByID(ctx, id)
}

func (p *Persistence) AutomationsByAudience(ctx context.Context, audienceID string) ([]*models.Automation, error) {
	return p.automations.GetByAudience(ctx, audienceID)
}

func (p *Persistence) ActiveAutomations(ctx context.Context) ([]*models.Automation, error) {
	return p.automations.GetActive(ctx)
}

func (p *Persistence) SaveAutomation(ctx context.Context, automation *models.Automation) error {
	return p.automations.Save(ctx, automation)
}

// Automation steps

func (p *Persistence) FindByID(ctx context.Context, id string) (*models.AutomationStep, error) {
	return p.steps.GetByID(ctx, id)
}

func (p *Persistence) FindByParentID(ctx context.Context, parentID string) ([]*models.AutomationStep, error) {
	return p.steps.GetByParent(ctx, parentID)
}

func (p *Persistence) FindChild(ctx context.Context, parentID string) (*models.AutomationStep, error) {
	return p.steps.Child(ctx, parentID)
}

func (p *Persistence) FindBranchChild(ctx context.Context, parentID string, branchIndex int) (*models.AutomationStep, error) {
	return p.steps.BranchChild(ctx, parentID, branchIndex)
}

func (p *Persistence) FindRoot(ctx context.Context, automationID string) (*models.AutomationStep, error) {
	return p.steps.Root(ctx, automationID)
}

func (p *Persistence) CreateTrigger(ctx context.Context, automationID, subtype string, config map[string]any) (*models.AutomationStep, error) {
	return p.steps.CreateTrigger(ctx, automationID, subtype, config)
}

func (p *Persistence) CreateStep(ctx context.Context, automationID, parentID string, branchIndex *int, stepType models.StepType, subtype string, config map[string]any) (*models.AutomationStep, error) {
	return p.steps.CreateStep(ctx, automationID, parentID, branchIndex, stepType, subtype, config)
}

func (p *Persistence) CreateIfElseStep(ctx context.Context, automationID, parentID string, branchIndex *int, config map[string]any) (*models.AutomationStep, error) {
	return p.steps.CreateIfElseStep(ctx, automationID, parentID, branchIndex, config)
}

func (p *Persistence) UpdateConfiguration(ctx context.Context, id string, config map[string]any) error {
	return p.steps.UpdateConfiguration(ctx, id, config)
}

// Completions

func (p *Persistence) RecordCompletion(ctx context.Context, contactID, stepID string) error {
	return p.completions.Record(ctx, contactID, stepID)
}

func (p *Persistence) HasCompleted(ctx context.Context, contactID, stepID string) (bool, error) {
	return p.completions.Has(ctx, contactID, stepID)
}

func (p *Persistence) CompletionsByContact(ctx context.Context, contactID string) ([]*models.ContactAutomationStep, error) {
	return p.completions.ByContact(ctx, contactID)
}

// Email templates and sender identities

func (p *Persistence) EmailTemplateByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	return p.templates.GetByID(ctx, id)
}

func (p *Persistence) EmailTemplatesByAudience(ctx context.Context, audienceID string) ([]*models.EmailTemplate, error) {
	return p.templates.GetByAudience(ctx, audienceID)
}

func (p *Persistence) SaveEmailTemplate(ctx context.Context, template *models.EmailTemplate) error {
	return p.templates.Save(ctx, template)
}

func (p *Persistence) DeleteEmailTemplate(ctx context.Context, id string) error {
	return p.templates.Delete(ctx, id)
}

func (p *Persistence) SenderIdentityByID(ctx context.Context, id string) (*models.SenderIdentity, error) {
	return p.templates.GetSenderByID(ctx, id)
}

func (p *Persistence) SaveSenderIdentity(ctx context.Context, sender *models.SenderIdentity) error {
	return p.templates.SaveSender(ctx, sender)
}
