package models

import "time"

// Direct contact fields addressable by filter conditions.
const (
	FieldEmail     = "email"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"

	FieldLastTrackedActivityType  = "lastTrackedActivityType"
	FieldLastTrackedActivityValue = "lastTrackedActivityValue"
	FieldLastTrackedActivityAt    = "lastTrackedActivityAt"
)

// Activity timestamp fields, cached on the contact by the event pipeline.
const (
	FieldLastSentBroadcastEmailAt         = "lastSentBroadcastEmailAt"
	FieldLastSentAutomationEmailAt        = "lastSentAutomationEmailAt"
	FieldLastOpenedBroadcastEmailAt       = "lastOpenedBroadcastEmailAt"
	FieldLastOpenedAutomationEmailAt      = "lastOpenedAutomationEmailAt"
	FieldLastClickedBroadcastEmailLinkAt  = "lastClickedBroadcastEmailLinkAt"
	FieldLastClickedAutomationEmailLinkAt = "lastClickedAutomationEmailLinkAt"
)

// FieldTags addresses tag membership conditions.
const FieldTags = "tags"

// Contact belongs to exactly one audience and carries the denormalized
// state the filter compiler evaluates against: direct attributes, typed
// custom properties, tag membership and cached activity timestamps.
type Contact struct {
	ID         string `json:"id"`
	AudienceID string `json:"audience_id" validate:"required"`
	Email      string `json:"email"       validate:"required,email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`

	LastTrackedActivityType  string     `json:"last_tracked_activity_type"`
	LastTrackedActivityValue string     `json:"last_tracked_activity_value"`
	LastTrackedActivityAt    *time.Time `json:"last_tracked_activity_at"`

	// Properties holds custom attribute values keyed by the audience's
	// property definitions. Values are JSON-decoded: string, float64 or bool.
	Properties map[string]any `json:"properties"`

	// Tags holds the ids of tags attached to the contact.
	Tags []string `json:"tags"`

	LastSentBroadcastEmailAt         *time.Time `json:"last_sent_broadcast_email_at"`
	LastSentAutomationEmailAt        *time.Time `json:"last_sent_automation_email_at"`
	LastOpenedBroadcastEmailAt       *time.Time `json:"last_opened_broadcast_email_at"`
	LastOpenedAutomationEmailAt      *time.Time `json:"last_opened_automation_email_at"`
	LastClickedBroadcastEmailLinkAt  *time.Time `json:"last_clicked_broadcast_email_link_at"`
	LastClickedAutomationEmailLinkAt *time.Time `json:"last_clicked_automation_email_link_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTag reports whether the tag id is attached to the contact.
func (c *Contact) HasTag(tagID string) bool {
	for _, id := range c.Tags {
		if id == tagID {
			return true
		}
	}

	return false
}

// DirectField returns the value of a direct text field by its condition
// field name. The second return is false for unknown names.
func (c *Contact) DirectField(field string) (string, bool) {
	switch field {
	case FieldEmail:
		return c.Email, true
	case FieldFirstName:
		return c.FirstName, true
	case FieldLastName:
		return c.LastName, true
	case FieldLastTrackedActivityType:
		return c.LastTrackedActivityType, true
	case FieldLastTrackedActivityValue:
		return c.LastTrackedActivityValue, true
	default:
		return "", false
	}
}

// ActivityAt returns the cached activity timestamp addressed by the
// condition field name. The second return is false for unknown names.
func (c *Contact) ActivityAt(field string) (*time.Time, bool) {
	switch field {
	case FieldLastTrackedActivityAt:
		return c.LastTrackedActivityAt, true
	case FieldLastSentBroadcastEmailAt:
		return c.LastSentBroadcastEmailAt, true
	case FieldLastSentAutomationEmailAt:
		return c.LastSentAutomationEmailAt, true
	case FieldLastOpenedBroadcastEmailAt:
		return c.LastOpenedBroadcastEmailAt, true
	case FieldLastOpenedAutomationEmailAt:
		return c.LastOpenedAutomationEmailAt, true
	case FieldLastClickedBroadcastEmailLinkAt:
		return c.LastClickedBroadcastEmailLinkAt, true
	case FieldLastClickedAutomationEmailLinkAt:
		return c.LastClickedAutomationEmailLinkAt, true
	default:
		return nil, false
	}
}

// IsActivityField reports whether the field name addresses a cached
// timestamp: the six activity fields plus lastTrackedActivityAt.
func IsActivityField(field string) bool {
	switch field {
	case FieldLastTrackedActivityAt,
		FieldLastSentBroadcastEmailAt,
		FieldLastSentAutomationEmailAt,
		FieldLastOpenedBroadcastEmailAt,
		FieldLastOpenedAutomationEmailAt,
		FieldLastClickedBroadcastEmailLinkAt,
		FieldLastClickedAutomationEmailLinkAt:
		return true
	default:
		return false
	}
}

// Tag is an audience-scoped label attachable to contacts.
type Tag struct {
	ID         string    `json:"id"`
	AudienceID string    `json:"audience_id"`
	Name       string    `json:"name" validate:"required,min=1"`
	CreatedAt  time.Time `json:"created_at"`
}
