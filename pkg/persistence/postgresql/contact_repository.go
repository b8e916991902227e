package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

const contactColumns = `
			c.id
		  , c.audience_id
		  , c.email
		  , c.first_name
		  , c.last_name
		  , c.last_tracked_activity_type
		  , c.last_tracked_activity_value
		  , c.last_tracked_activity_at
		  , c.properties
		  , c.last_sent_broadcast_email_at
		  , c.last_sent_automation_email_at
		  , c.last_opened_broadcast_email_at
		  , c.last_opened_automation_email_at
		  , c.last_clicked_broadcast_email_link_at
		  , c.last_clicked_automation_email_link_at
		  , c.created_at
		  , c.updated_at
`

// ContactRepository handles contact-related database operations, including
// tag membership.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewContactRepository(db *sql.DB, logger *slog.Logger) *ContactRepository {
	return &ContactRepository{db: db, logger: logger}
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `SELECT` + contactColumns + `FROM contacts c WHERE c.id = $1`

	contact, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrContactNotFound
		}

		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	err = r.loadTags(ctx, contact)
	if err != nil {
		return nil, err
	}

	return contact, nil
}

func (r *ContactRepository) Save(ctx context.Context, contact *models.Contact) error {
	now := time.Now().UTC()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
		contact.CreatedAt = now
	}

	contact.UpdatedAt = now

	properties, err := json.Marshal(contact.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal contact properties: %w", err)
	}

	query := `
		INSERT INTO contacts (
			id, audience_id, email, first_name, last_name,
			last_tracked_activity_type, last_tracked_activity_value, last_tracked_activity_at,
			properties,
			last_sent_broadcast_email_at, last_sent_automation_email_at,
			last_opened_broadcast_email_at, last_opened_automation_email_at,
			last_clicked_broadcast_email_link_at, last_clicked_automation_email_link_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_tracked_activity_type = EXCLUDED.last_tracked_activity_type,
			last_tracked_activity_value = EXCLUDED.last_tracked_activity_value,
			last_tracked_activity_at = EXCLUDED.last_tracked_activity_at,
			properties = EXCLUDED.properties,
			last_sent_broadcast_email_at = EXCLUDED.last_sent_broadcast_email_at,
			last_sent_automation_email_at = EXCLUDED.last_sent_automation_email_at,
			last_opened_broadcast_email_at = EXCLUDED.last_opened_broadcast_email_at,
			last_opened_automation_email_at = EXCLUDED.last_opened_automation_email_at,
			last_clicked_broadcast_email_link_at = EXCLUDED.last_clicked_broadcast_email_link_at,
			last_clicked_automation_email_link_at = EXCLUDED.last_clicked_automation_email_link_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		contact.ID, contact.AudienceID, contact.Email, contact.FirstName, contact.LastName,
		contact.LastTrackedActivityType, contact.LastTrackedActivityValue, contact.LastTrackedActivityAt,
		properties,
		contact.LastSentBroadcastEmailAt, contact.LastSentAutomationEmailAt,
		contact.LastOpenedBroadcastEmailAt, contact.LastOpenedAutomationEmailAt,
		contact.LastClickedBroadcastEmailLinkAt, contact.LastClickedAutomationEmailLinkAt,
		contact.CreatedAt, contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

// ListByPredicate attaches the compiled predicate to the contact listing
// query. The cursor clause and predicate arguments share one placeholder
// sequence, so the predicate is rendered with its argument offset.
func (r *ContactRepository) ListByPredicate(ctx context.Context, audienceID string, predicate *filter.Predicate, afterID string, limit int) ([]*models.Contact, error) {
	query := `SELECT` + contactColumns + `FROM contacts c WHERE c.audience_id = $1 AND c.id > $2`
	args := []any{audienceID, afterID}

	if predicate != nil {
		fragment, fragmentArgs := predicate.SQL("c", 3)
		query += " AND " + fragment
		args = append(args, fragmentArgs...)
	}

	query += " ORDER BY c.id ASC LIMIT " + strconv.Itoa(limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	contacts := make([]*models.Contact, 0)

	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}

		contacts = append(contacts, contact)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	for _, contact := range contacts {
		err = r.loadTags(ctx, contact)
		if err != nil {
			return nil, err
		}
	}

	return contacts, nil
}

func (r *ContactRepository) AttachTag(ctx context.Context, contactID, tagID string) error {
	query := `
		INSERT INTO contact_tags (contact_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (contact_id, tag_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, contactID, tagID)
	if err != nil {
		return fmt.Errorf("failed to attach tag: %w", err)
	}

	return nil
}

func (r *ContactRepository) DetachTag(ctx context.Context, contactID, tagID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM contact_tags WHERE contact_id = $1 AND tag_id = $2`, contactID, tagID)
	if err != nil {
		return fmt.Errorf("failed to detach tag: %w", err)
	}

	return nil
}

func (r *ContactRepository) loadTags(ctx context.Context, contact *models.Contact) error {
	rows, err := r.db.QueryContext(ctx, `SELECT tag_id FROM contact_tags WHERE contact_id = $1 ORDER BY tag_id`, contact.ID)
	if err != nil {
		return fmt.Errorf("failed to query contact tags: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	contact.Tags = make([]string, 0)

	for rows.Next() {
		var tagID string

		err = rows.Scan(&tagID)
		if err != nil {
			return fmt.Errorf("failed to scan contact tag: %w", err)
		}

		contact.Tags = append(contact.Tags, tagID)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating contact tags: %w", err)
	}

	return nil
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		contact    models.Contact
		properties []byte
	)

	err := row.Scan(
		&contact.ID, &contact.AudienceID, &contact.Email, &contact.FirstName, &contact.LastName,
		&contact.LastTrackedActivityType, &contact.LastTrackedActivityValue, &contact.LastTrackedActivityAt,
		&properties,
		&contact.LastSentBroadcastEmailAt, &contact.LastSentAutomationEmailAt,
		&contact.LastOpenedBroadcastEmailAt, &contact.LastOpenedAutomationEmailAt,
		&contact.LastClickedBroadcastEmailLinkAt, &contact.LastClickedAutomationEmailLinkAt,
		&contact.CreatedAt, &contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(properties) > 0 {
		err = json.Unmarshal(properties, &contact.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact properties: %w", err)
		}
	}

	return &contact, nil
}
