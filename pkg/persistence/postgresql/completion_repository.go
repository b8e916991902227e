package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/models"
)

// CompletionRepository stores the append-only (contact, step) completion
// ledger.
type CompletionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCompletionRepository(db *sql.DB, logger *slog.Logger) *CompletionRepository {
	return &CompletionRepository{db: db, logger: logger}
}

func (r *CompletionRepository) Record(ctx context.Context, contactID, stepID string) error {
	query := `
		INSERT INTO contact_automation_steps (contact_id, automation_step_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (contact_id, automation_step_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, contactID, stepID, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	return nil
}

func (r *CompletionRepository) Has(ctx context.Context, contactID, stepID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM contact_automation_steps WHERE contact_id = $1 AND automation_step_id = $2)`

	var exists bool

	err := r.db.QueryRowContext(ctx, query, contactID, stepID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query completion: %w", err)
	}

	return exists, nil
}

func (r *CompletionRepository) ByContact(ctx context.Context, contactID string) ([]*models.ContactAutomationStep, error) {
	query := `
		SELECT contact_id, automation_step_id, status, completed_at
		FROM contact_automation_steps
		WHERE contact_id = $1
		ORDER BY completed_at
	`

	rows, err := r.db.QueryContext(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	completions := make([]*models.ContactAutomationStep, 0)

	for rows.Next() {
		var completion models.ContactAutomationStep

		err = rows.Scan(&completion.ContactID, &completion.AutomationStepID, &completion.Status, &completion.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}

		completions = append(completions, &completion)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}

	return completions, nil
}
