package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dripkit/dripkit/pkg/models"
)

var (
	// ErrUnknownField means the condition's field addresses no evaluator domain.
	ErrUnknownField = errors.New("unknown filter field")
	// ErrUnsupportedOperation means the operation is not valid for the field's domain.
	ErrUnsupportedOperation = errors.New("unsupported filter operation")
	// ErrInvalidValue means the condition's value has the wrong shape for its field.
	ErrInvalidValue = errors.New("invalid filter value")
	// ErrAmbiguousGroup means a group carries both sub-groups and conditions.
	ErrAmbiguousGroup = errors.New("filter group holds both groups and conditions")
)

// Compile builds a predicate for the filter group against the audience's
// property registry. Relative time windows are anchored at the current time.
// A nil group compiles to an always-true predicate, like an empty one.
func Compile(group *models.FilterGroup, audience *models.Audience) (*Predicate, error) {
	return CompileAt(group, audience, time.Now().UTC())
}

// CompileAt is Compile with an explicit clock. Compilation is pure: the same
// group, audience and clock always produce an identical predicate, whether
// it is attached to a segment query or evaluated against a single contact.
func CompileAt(group *models.FilterGroup, audience *models.Audience, now time.Time) (*Predicate, error) {
	if group == nil {
		return &Predicate{root: alwaysTrue()}, nil
	}

	root, err := compileGroup(*group, audience, now)
	if err != nil {
		return nil, err
	}

	return &Predicate{root: root}, nil
}

func compileGroup(group models.FilterGroup, audience *models.Audience, now time.Time) (node, error) {
	if len(group.Groups) > 0 && len(group.Conditions) > 0 {
		return node{}, ErrAmbiguousGroup
	}

	if len(group.Groups) > 0 {
		children := make([]node, 0, len(group.Groups))

		for _, sub := range group.Groups {
			child, err := compileGroup(sub, audience, now)
			if err != nil {
				return node{}, err
			}

			children = append(children, child)
		}

		return combine(group.Type, children), nil
	}

	children := make([]node, 0, len(group.Conditions))

	for _, cond := range group.Conditions {
		child, err := compileCondition(cond, audience, now)
		if err != nil {
			return node{}, err
		}

		children = append(children, child)
	}

	// Empty conditions compile to an always-true leaf; combine handles it.
	return combine(group.Type, children), nil
}

// Validate rejects malformed filters at authoring time, before a segment or
// automation step is persisted. It is stricter than compilation: property
// conditions referencing keys absent from the audience schema are errors
// here, while CompileAt maps them to match-nothing predicates so filters
// persisted before a property was removed stay executable.
func Validate(group *models.FilterGroup, audience *models.Audience) error {
	if group == nil {
		return nil
	}

	return validateGroup(*group, audience, "filter")
}

func validateGroup(group models.FilterGroup, audience *models.Audience, path string) error {
	if group.Type != models.GroupAnd && group.Type != models.GroupOr {
		return fmt.Errorf("%s: unknown group type %q", path, group.Type)
	}

	if len(group.Groups) > 0 && len(group.Conditions) > 0 {
		return fmt.Errorf("%s: %w", path, ErrAmbiguousGroup)
	}

	for i, sub := range group.Groups {
		err := validateGroup(sub, audience, fmt.Sprintf("%s.groups[%d]", path, i))
		if err != nil {
			return err
		}
	}

	for i, cond := range group.Conditions {
		err := validateCondition(cond, audience)
		if err != nil {
			return fmt.Errorf("%s.conditions[%d]: %w", path, i, err)
		}
	}

	return nil
}

func validateCondition(cond models.Condition, audience *models.Audience) error {
	if strings.TrimSpace(cond.Field) == "" {
		return fmt.Errorf("%w: empty field", ErrUnknownField)
	}

	if key, isProperty := strings.CutPrefix(cond.Field, PropertyFieldPrefix); isProperty && key != "" {
		if _, known := audience.PropertyTypeOf(key); !known {
			return fmt.Errorf("%w: property %q is not declared on the audience", ErrUnknownField, key)
		}
	}

	// Compiling the single condition exercises the full operator and value
	// checks of its evaluator without duplicating them here.
	_, err := compileCondition(cond, audience, time.Unix(0, 0).UTC())

	return err
}
