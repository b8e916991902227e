// Package postgresql provides the PostgreSQL persistence implementation.
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

// AudienceRepository handles audience-related database operations.
type AudienceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAudienceRepository(db *sql.DB, logger *slog.Logger) *AudienceRepository {
	return &AudienceRepository{db: db, logger: logger}
}

func (r *AudienceRepository) GetAll(ctx context.Context) ([]*models.Audience, error) {
	query := `
		SELECT
			id
		  , name
		  , property_definitions
		  , created_at
		  , updated_at
		FROM audiences
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audiences: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	audiences := make([]*models.Audience, 0)

	for rows.Next() {
		audience, err := scanAudience(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audience: %w", err)
		}

		audiences = append(audiences, audience)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audiences: %w", err)
	}

	return audiences, nil
}

func (r *AudienceRepository) GetByID(ctx context.Context, id string) (*models.Audience, error) {
	query := `
		SELECT
			id
		  , name
		  , property_definitions
		  , created_at
		  , updated_at
		FROM audiences
		WHERE id = $1
	`

	audience, err := scanAudience(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAudienceNotFound
		}

		return nil, fmt.Errorf("failed to scan audience: %w", err)
	}

	return audience, nil
}

func (r *AudienceRepository) Save(ctx context.Context, audience *models.Audience) error {
	now := time.Now().UTC()

	if audience.ID == "" {
		audience.ID = uuid.New().String()
		audience.CreatedAt = now
	}

	audience.UpdatedAt = now

	definitions, err := json.Marshal(audience.PropertyDefinitions)
	if err != nil {
		return fmt.Errorf("failed to marshal property definitions: %w", err)
	}

	query := `
		INSERT INTO audiences (id, name, property_definitions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			property_definitions = EXCLUDED.property_definitions,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, audience.ID, audience.Name, definitions, audience.CreatedAt, audience.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save audience: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudience(row rowScanner) (*models.Audience, error) {
	var (
		audience    models.Audience
		definitions []byte
	)

	err := row.Scan(&audience.ID, &audience.Name, &definitions, &audience.CreatedAt, &audience.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(definitions) > 0 {
		err = json.Unmarshal(definitions, &audience.PropertyDefinitions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal property definitions: %w", err)
		}
	}

	return &audience, nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
