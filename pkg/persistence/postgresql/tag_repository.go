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

// TagRepository handles tag-related database operations.
type TagRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTagRepository(db *sql.DB, logger *slog.Logger) *TagRepository {
	return &TagRepository{db: db, logger: logger}
}

func (r *TagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	query := `SELECT id, audience_id, name, created_at FROM tags WHERE id = $1`

	var tag models.Tag

	err := r.db.QueryRowContext(ctx, query, id).Scan(&tag.ID, &tag.AudienceID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTagNotFound
		}

		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}

	return &tag, nil
}

func (r *TagRepository) GetByAudience(ctx context.Context, audienceID string) ([]*models.Tag, error) {
	query := `SELECT id, audience_id, name, created_at FROM tags WHERE audience_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, audienceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	tags := make([]*models.Tag, 0)

	for rows.Next() {
		var tag models.Tag

		err = rows.Scan(&tag.ID, &tag.AudienceID, &tag.Name, &tag.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}

		tags = append(tags, &tag)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}

func (r *TagRepository) Save(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.New().String()
		tag.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tags (id, audience_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`

	_, err := r.db.ExecContext(ctx, query, tag.ID, tag.AudienceID, tag.Name, tag.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save tag: %w", err)
	}

	return nil
}
