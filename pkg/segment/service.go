// Package segment previews audience filters against the contact store.
package segment

import (
	"context"
	"fmt"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Service struct {
	store persistence.Persistence
}

func NewService(store persistence.Persistence) *Service {
	return &Service{store: store}
}

// PreviewResult is one page of matching contacts. NextCursor is empty on
// the last page; otherwise passing it back returns the next page.
type PreviewResult struct {
	Contacts   []*models.Contact `json:"contacts"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// Preview compiles the filter and returns the page of audience contacts
// after cursor. It fetches one row beyond the page to decide whether a
// next page exists.
func (s *Service) Preview(ctx context.Context, audienceID string, group *models.FilterGroup, cursor string, pageSize int) (*PreviewResult, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	audience, err := s.store.AudienceByID(ctx, audienceID)
	if err != nil {
		return nil, fmt.Errorf("fetch audience %s: %w", audienceID, err)
	}

	// A preview is an authoring surface, so the filter gets the strict
	// check that also guards automation trigger filters.
	if err := filter.Validate(group, audience); err != nil {
		return nil, fmt.Errorf("validate filter: %w", err)
	}

	predicate, err := filter.Compile(group, audience)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	contacts, err := s.store.ContactsByPredicate(ctx, audienceID, predicate, cursor, pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	result := &PreviewResult{Contacts: contacts}

	if len(contacts) > pageSize {
		result.Contacts = contacts[:pageSize]
		result.NextCursor = contacts[pageSize-1].ID
	}

	return result, nil
}
