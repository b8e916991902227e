// Package models defines the core domain models for audience segmentation and automations.
package models

import "time"

// PropertyType is the declared type of an audience-defined custom property.
type PropertyType string

const (
	PropertyTypeText    PropertyType = "text"
	PropertyTypeFloat   PropertyType = "float"
	PropertyTypeBoolean PropertyType = "boolean"
	PropertyTypeDate    PropertyType = "date"
)

// PropertyDefinition declares one custom property key and its type for an audience.
type PropertyDefinition struct {
	Key  string       `json:"key"  validate:"required"`
	Type PropertyType `json:"type" validate:"required,oneof=text float boolean date"`
}

// Audience is a tenant-scoped collection of contacts with its own
// custom-property schema.
type Audience struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name" validate:"required,min=1"`
	PropertyDefinitions []PropertyDefinition `json:"property_definitions"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// PropertyTypeOf resolves the declared type of a custom property key.
// The second return is false when the key is not part of the schema.
func (a *Audience) PropertyTypeOf(key string) (PropertyType, bool) {
	for _, def := range a.PropertyDefinitions {
		if def.Key == key {
			return def.Type, true
		}
	}

	return "", false
}
