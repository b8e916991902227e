package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

// AutomationRepository handles automation-related database operations.
type AutomationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAutomationRepository(db *sql.DB, logger *slog.Logger) *AutomationRepository {
	return &AutomationRepository{db: db, logger: logger}
}

const automationColumns = `
			id
		  , audience_id
		  , name
		  , active
		  , trigger_filter
		  , created_at
		  , updated_at
`

func (r *AutomationRepository) GetByID(ctx context.Context, id string) (*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations WHERE id = $1`

	automation, err := scanAutomation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAutomationNotFound
		}

		return nil, fmt.Errorf("failed to scan automation: %w", err)
	}

	return automation, nil
}

func (r *AutomationRepository) GetByAudience(ctx context.Context, audienceID string) ([]*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations WHERE audience_id = $1 ORDER BY created_at DESC`

	return r.list(ctx, query, audienceID)
}

func (r *AutomationRepository) GetActive(ctx context.Context) ([]*models.Automation, error) {
	query := `SELECT` + automationColumns + `FROM automations WHERE active ORDER BY created_at`

	return r.list(ctx, query)
}

func (r *AutomationRepository) list(ctx context.Context, query string, args ...any) ([]*models.Automation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	automations := make([]*models.Automation, 0)

	for rows.Next() {
		automation, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}

		automations = append(automations, automation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}

	return automations, nil
}

func (r *AutomationRepository) Save(ctx context.Context, automation *models.Automation) error {
	now := time.Now().UTC()

	if automation.ID == "" {
		automation.ID = uuid.New().String()
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	var (
		triggerFilter []byte
		err           error
	)

	if automation.TriggerFilter != nil {
		triggerFilter, err = json.Marshal(automation.TriggerFilter)
		if err != nil {
			return fmt.Errorf("failed to marshal trigger filter: %w", err)
		}
	}

	query := `
		INSERT INTO automations (id, audience_id, name, active, trigger_filter, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			trigger_filter = EXCLUDED.trigger_filter,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		automation.ID, automation.AudienceID, automation.Name, automation.Active,
		triggerFilter, automation.CreatedAt, automation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}

	return nil
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var (
		automation    models.Automation
		triggerFilter []byte
	)

	err := row.Scan(
		&automation.ID, &automation.AudienceID, &automation.Name, &automation.Active,
		&triggerFilter, &automation.CreatedAt, &automation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerFilter) > 0 {
		automation.TriggerFilter = &models.FilterGroup{}

		err = json.Unmarshal(triggerFilter, automation.TriggerFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger filter: %w", err)
		}
	}

	return &automation, nil
}
