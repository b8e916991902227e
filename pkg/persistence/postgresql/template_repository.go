package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

// TemplateRepository handles email template and sender identity storage.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	query := `
		SELECT id, audience_id, name, subject, html, text, created_at, updated_at
		FROM email_templates
		WHERE id = $1
	`

	var template models.EmailTemplate

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID, &template.AudienceID, &template.Name,
		&template.Subject, &template.HTML, &template.Text,
		&template.CreatedAt, &template.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrEmailTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan email template: %w", err)
	}

	return &template, nil
}

func (r *TemplateRepository) GetByAudience(ctx context.Context, audienceID string) ([]*models.EmailTemplate, error) {
	query := `
		SELECT id, audience_id, name, subject, html, text, created_at, updated_at
		FROM email_templates
		WHERE audience_id = $1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, audienceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query email templates: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	templates := make([]*models.EmailTemplate, 0)

	for rows.Next() {
		var template models.EmailTemplate

		err = rows.Scan(
			&template.ID, &template.AudienceID, &template.Name,
			&template.Subject, &template.HTML, &template.Text,
			&template.CreatedAt, &template.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email template: %w", err)
		}

		templates = append(templates, &template)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating email templates: %w", err)
	}

	return templates, nil
}

func (r *TemplateRepository) Save(ctx context.Context, template *models.EmailTemplate) error {
	now := time.Now().UTC()

	if template.ID == "" {
		template.ID = uuid.New().String()
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	query := `
		INSERT INTO email_templates (id, audience_id, name, subject, html, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			subject = EXCLUDED.subject,
			html = EXCLUDED.html,
			text = EXCLUDED.text,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		template.ID, template.AudienceID, template.Name,
		template.Subject, template.HTML, template.Text,
		template.CreatedAt, template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save email template: %w", err)
	}

	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete email template: %w", err)
	}

	return nil
}

func (r *TemplateRepository) GetSenderByID(ctx context.Context, id string) (*models.SenderIdentity, error) {
	query := `
		SELECT id, audience_id, from_name, from_email, sending_domain, created_at
		FROM sender_identities
		WHERE id = $1
	`

	var sender models.SenderIdentity

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sender.ID, &sender.AudienceID, &sender.FromName,
		&sender.FromEmail, &sender.SendingDomain, &sender.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSenderIdentityNotFound
		}

		return nil, fmt.Errorf("failed to scan sender identity: %w", err)
	}

	return &sender, nil
}

func (r *TemplateRepository) SaveSender(ctx context.Context, sender *models.SenderIdentity) error {
	if sender.ID == "" {
		sender.ID = uuid.New().String()
		sender.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sender_identities (id, audience_id, from_name, from_email, sending_domain, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			from_name = EXCLUDED.from_name,
			from_email = EXCLUDED.from_email,
			sending_domain = EXCLUDED.sending_domain
	`

	_, err := r.db.ExecContext(ctx, query,
		sender.ID, sender.AudienceID, sender.FromName,
		sender.FromEmail, sender.SendingDomain, sender.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sender identity: %w", err)
	}

	return nil
}
