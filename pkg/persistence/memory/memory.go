// Package memory provides an in-memory persistence implementation used by
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence"
)

type completionKey struct {
	contactID string
	stepID    string
}

type Persistence struct {
	mu sync.RWMutex

	audiences   map[string]*models.Audience
	contacts    map[string]*models.Contact
	tags        map[string]*models.Tag
	automations map[string]*models.Automation
	steps       map[string]*models.AutomationStep
	completions map[completionKey]*models.ContactAutomationStep
	templates   map[string]*models.EmailTemplate
	senders     map[string]*models.SenderIdentity
}

var _ persistence.Persistence = (*Persistence)(nil)

func NewPersistence() *Persistence {
	return &Persistence{
		audiences:   make(map[string]*models.Audience),
		contacts:    make(map[string]*models.Contact),
		tags:        make(map[string]*models.Tag),
		automations: make(map[string]*models.Automation),
		steps:       make(map[string]*models.AutomationStep),
		completions: make(map[completionKey]*models.ContactAutomationStep),
		templates:   make(map[string]*models.EmailTemplate),
		senders:     make(map[string]*models.SenderIdentity),
	}
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// Audiences

func (p *Persistence) Audiences(_ context.Context) ([]*models.Audience, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	audiences := make([]*models.Audience, 0, len(p.audiences))
	for _, audience := range p.audiences {
		audiences = append(audiences, audience)
	}

	sort.Slice(audiences, func(i, j int) bool { return audiences[i].ID < audiences[j].ID })

	return audiences, nil
}

func (p *Persistence) AudienceByID(_ context.Context, id string) (*models.Audience, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	audience, ok := p.audiences[id]
	if !ok {
		return nil, persistence.ErrAudienceNotFound
	}

	return audience, nil
}

func (p *Persistence) SaveAudience(_ context.Context, audience *models.Audience) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if audience.ID == "" {
		audience.ID = uuid.New().String()
	}

	p.audiences[audience.ID] = audience

	return nil
}

// Contacts

func (p *Persistence) ContactByID(_ context.Context, id string) (*models.Contact, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	contact, ok := p.contacts[id]
	if !ok {
		return nil, persistence.ErrContactNotFound
	}

	return contact, nil
}

func (p *Persistence) SaveContact(_ context.Context, contact *models.Contact) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}

	p.contacts[contact.ID] = contact

	return nil
}

func (p *Persistence) ContactsByPredicate(_ context.Context, audienceID string, predicate *filter.Predicate, afterID string, limit int) ([]*models.Contact, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	matched := make([]*models.Contact, 0)

	for _, contact := range p.contacts {
		if contact.AudienceID != audienceID {
			continue
		}

		if contact.ID <= afterID {
			continue
		}

		if predicate != nil && !predicate.Match(contact) {
			continue
		}

		matched = append(matched, contact)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (p *Persistence) AttachTag(_ context.Context, contactID, tagID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	contact, ok := p.contacts[contactID]
	if !ok {
		return persistence.ErrContactNotFound
	}

	if contact.HasTag(tagID) {
		return nil
	}

	contact.Tags = append(contact.Tags, tagID)

	return nil
}

func (p *Persistence) DetachTag(_ context.Context, contactID, tagID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	contact, ok := p.contacts[contactID]
	if !ok {
		return persistence.ErrContactNotFound
	}

	tags := contact.Tags[:0]

	for _, id := range contact.Tags {
		if id != tagID {
			tags = append(tags, id)
		}
	}

	contact.Tags = tags

	return nil
}

// Tags

func (p *Persistence) TagByID(_ context.Context, id string) (*models.Tag, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tag, ok := p.tags[id]
	if !ok {
		return nil, persistence.ErrTagNotFound
	}

	return tag, nil
}

func (p *Persistence) TagsByAudience(_ context.Context, audienceID string) ([]*models.Tag, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tags := make([]*models.Tag, 0)

	for _, tag := range p.tags {
		if tag.AudienceID == audienceID {
			tags = append(tags, tag)
		}
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })

	return tags, nil
}

func (p *Persistence) SaveTag(_ context.Context, tag *models.Tag) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tag.ID == "" {
		tag.ID = uuid.New().String()
	}

	p.tags[tag.ID] = tag

	return nil
}

// Automations

func (p *Persistence) AutomationByID(_ context.Context, id string) (*models.Automation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	automation, ok := p.automations[id]
	if !ok {
		return nil, persistence.ErrAutomationNotFound
	}

	return automation, nil
}

func (p *Persistence) AutomationsByAudience(_ context.Context, audienceID string) ([]*models.Automation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	automations := make([]*models.Automation, 0)

	for _, automation := range p.automations {
		if automation.AudienceID == audienceID {
			automations = append(automations, automation)
		}
	}

	sort.Slice(automations, func(i, j int) bool { return automations[i].ID < automations[j].ID })

	return automations, nil
}

func (p *Persistence) ActiveAutomations(_ context.Context) ([]*models.Automation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	automations := make([]*models.Automation, 0)

	for _, automation := range p.automations {
		if automation.Active {
			automations = append(automations, automation)
		}
	}

	sort.Slice(automations, func(i, j int) bool { return automations[i].ID < automations[j].ID })

	return automations, nil
}

func (p *Persistence) SaveAutomation(_ context.Context, automation *models.Automation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if automation.ID == "" {
		automation.ID = uuid.New().String()
	}

	p.automations[automation.ID] = automation

	return nil
}

// Completions

func (p *Persistence) RecordCompletion(_ context.Context, contactID, stepID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := completionKey{contactID: contactID, stepID: stepID}
	if _, ok := p.completions[key]; ok {
		return nil
	}

	p.completions[key] = &models.ContactAutomationStep{
		ContactID:        contactID,
		AutomationStepID: stepID,
		Status:           models.StatusCompleted,
		CompletedAt:      time.Now().UTC(),
	}

	return nil
}

func (p *Persistence) HasCompleted(_ context.Context, contactID, stepID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.completions[completionKey{contactID: contactID, stepID: stepID}]

	return ok, nil
}

func (p *Persistence) CompletionsByContact(_ context.Context, contactID string) ([]*models.ContactAutomationStep, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	completions := make([]*models.ContactAutomationStep, 0)

	for key, completion := range p.completions {
		if key.contactID == contactID {
			completions = append(completions, completion)
		}
	}

	sort.Slice(completions, func(i, j int) bool {
		return completions[i].CompletedAt.Before(completions[j].CompletedAt)
	})

	return completions, nil
}

// Email templates

func (p *Persistence) EmailTemplateByID(_ context.Context, id string) (*models.EmailTemplate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	template, ok := p.templates[id]
	if !ok {
		return nil, persistence.ErrEmailTemplateNotFound
	}

	return template, nil
}

func (p *Persistence) EmailTemplatesByAudience(_ context.Context, audienceID string) ([]*models.EmailTemplate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	templates := make([]*models.EmailTemplate, 0)

	for _, template := range p.templates {
		if template.AudienceID == audienceID {
			templates = append(templates, template)
		}
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })

	return templates, nil
}

func (p *Persistence) SaveEmailTemplate(_ context.Context, template *models.EmailTemplate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if template.ID == "" {
		template.ID = uuid.New().String()
	}

	p.templates[template.ID] = template

	return nil
}

func (p *Persistence) DeleteEmailTemplate(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.templates, id)

	return nil
}

// Sender identities

func (p *Persistence) SenderIdentityByID(_ context.Context, id string) (*models.SenderIdentity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sender, ok := p.senders[id]
	if !ok {
		return nil, persistence.ErrSenderIdentityNotFound
	}

	return sender, nil
}

func (p *Persistence) SaveSenderIdentity(_ context.Context, sender *models.SenderIdentity) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sender.ID == "" {
		sender.ID = uuid.New().String()
	}

	p.senders[sender.ID] = sender

	return nil
}
