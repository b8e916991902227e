package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dripkit/dripkit/pkg/models"
)

// PropertyFieldPrefix addresses audience-defined custom properties, as in
// "properties.company_size".
const PropertyFieldPrefix = "properties."

var directColumns = map[string]string{
	models.FieldEmail:                    "email",
	models.FieldFirstName:                "first_name",
	models.FieldLastName:                 "last_name",
	models.FieldLastTrackedActivityType:  "last_tracked_activity_type",
	models.FieldLastTrackedActivityValue: "last_tracked_activity_value",
}

var activityColumns = map[string]string{
	models.FieldLastTrackedActivityAt:               "last_tracked_activity_at",
	models.FieldLastSentBroadcastEmailAt:            "last_sent_broadcast_email_at",
	models.FieldLastSentAutomationEmailAt:           "last_sent_automation_email_at",
	models.FieldLastOpenedBroadcastEmailAt:          "last_opened_broadcast_email_at",
	models.FieldLastOpenedAutomationEmailAt:         "last_opened_automation_email_at",
	models.FieldLastClickedBroadcastEmailLinkAt:     "last_clicked_broadcast_email_link_at",
	models.FieldLastClickedAutomationEmailLinkAt:    "last_clicked_automation_email_link_at",
}

// compileCondition dispatches a single condition to the evaluator for its
// field domain.
func compileCondition(cond models.Condition, audience *models.Audience, now time.Time) (node, error) {
	switch {
	case cond.Field == models.FieldTags:
		return compileTagCondition(cond)
	case strings.HasPrefix(cond.Field, PropertyFieldPrefix):
		return compilePropertyCondition(cond, audience)
	case models.IsActivityField(cond.Field):
		return compileActivityCondition(cond, now)
	default:
		return compileDirectCondition(cond)
	}
}

// compileDirectCondition handles direct text attributes of the contact.
// Substring matches are case-sensitive; gte/lte compare lexicographically.
func compileDirectCondition(cond models.Condition) (node, error) {
	column, ok := directColumns[cond.Field]
	if !ok {
		return node{}, fmt.Errorf("%w: %q", ErrUnknownField, cond.Field)
	}

	value, ok := stringValue(cond.Value)
	if !ok {
		return node{}, fmt.Errorf("%w: field %q wants a string value", ErrInvalidValue, cond.Field)
	}

	get := func(c *models.Contact) string {
		v, _ := c.DirectField(cond.Field)

		return v
	}

	expr := func(b *sqlBuilder) string { return b.column(column) }

	return textNode(expr, get, cond.Operation, value, cond.Field)
}

// textNode builds the shared text comparison used by direct fields and
// text-typed custom properties. expr renders the left-hand column
// expression; it may bind its own arguments, so it must run before the
// value placeholder is drawn.
func textNode(expr func(*sqlBuilder) string, get func(*models.Contact) string, op models.Operation, value, field string) (node, error) {
	switch op {
	case models.OperationEq:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s = %s", expr(b), b.nextArg(value))
			},
			match: func(c *models.Contact) bool { return get(c) == value },
		}, nil
	case models.OperationStartsWith:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s LIKE %s", expr(b), b.nextArg(escapeLike(value)+"%"))
			},
			match: func(c *models.Contact) bool { return strings.HasPrefix(get(c), value) },
		}, nil
	case models.OperationEndsWith:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s LIKE %s", expr(b), b.nextArg("%"+escapeLike(value)))
			},
			match: func(c *models.Contact) bool { return strings.HasSuffix(get(c), value) },
		}, nil
	case models.OperationContains:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s LIKE %s", expr(b), b.nextArg("%"+escapeLike(value)+"%"))
			},
			match: func(c *models.Contact) bool { return strings.Contains(get(c), value) },
		}, nil
	case models.OperationNotContains:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s NOT LIKE %s", expr(b), b.nextArg("%"+escapeLike(value)+"%"))
			},
			match: func(c *models.Contact) bool { return !strings.Contains(get(c), value) },
		}, nil
	case models.OperationGte:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s >= %s", expr(b), b.nextArg(value))
			},
			match: func(c *models.Contact) bool { return get(c) >= value },
		}, nil
	case models.OperationLte:
		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s <= %s", expr(b), b.nextArg(value))
			},
			match: func(c *models.Contact) bool { return get(c) <= value },
		}, nil
	default:
		return node{}, fmt.Errorf("%w: %q on text field %q", ErrUnsupportedOperation, op, field)
	}
}

// compilePropertyCondition handles "properties.<key>" conditions. The
// audience's property registry decides the comparison type; an unknown key
// compiles to a predicate that matches nothing.
func compilePropertyCondition(cond models.Condition, audience *models.Audience) (node, error) {
	key := strings.TrimPrefix(cond.Field, PropertyFieldPrefix)
	if key == "" {
		return node{}, fmt.Errorf("%w: empty property key", ErrUnknownField)
	}

	propertyType, ok := audience.PropertyTypeOf(key)
	if !ok {
		return matchNothing(), nil
	}

	switch propertyType {
	case models.PropertyTypeText:
		value, ok := stringValue(cond.Value)
		if !ok {
			return node{}, fmt.Errorf("%w: property %q wants a string value", ErrInvalidValue, key)
		}

		// The key comes from user input, so it is bound as an argument
		// rather than spliced into the fragment.
		expr := func(b *sqlBuilder) string {
			return fmt.Sprintf("%s->>%s", b.column("properties"), b.nextArg(key))
		}
		get := func(c *models.Contact) string {
			v, _ := stringValue(c.Properties[key])

			return v
		}

		n, err := textNode(expr, get, cond.Operation, value, cond.Field)
		if err != nil {
			return node{}, err
		}

		// A contact without the key must never match, including for
		// negated operations: SQL NULL comparisons are already falsy.
		inner := n.match
		n.match = func(c *models.Contact) bool {
			if _, present := c.Properties[key]; !present {
				return false
			}

			return inner(c)
		}

		return n, nil

	case models.PropertyTypeFloat:
		value, ok := floatValue(cond.Value)
		if !ok {
			return node{}, fmt.Errorf("%w: property %q wants a numeric value", ErrInvalidValue, key)
		}

		return floatPropertyNode(key, cond.Operation, value, cond.Field)

	case models.PropertyTypeBoolean:
		value, ok := cond.Value.(bool)
		if !ok {
			return node{}, fmt.Errorf("%w: property %q wants a boolean value", ErrInvalidValue, key)
		}

		if cond.Operation != models.OperationEq {
			return node{}, fmt.Errorf("%w: %q on boolean property %q", ErrUnsupportedOperation, cond.Operation, key)
		}

		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("(%s->>%s)::boolean = %s", b.column("properties"), b.nextArg(key), b.nextArg(value))
			},
			match: func(c *models.Contact) bool {
				v, present := c.Properties[key].(bool)

				return present && v == value
			},
		}, nil

	case models.PropertyTypeDate:
		value, ok := timeValue(cond.Value)
		if !ok {
			return node{}, fmt.Errorf("%w: property %q wants an RFC 3339 date value", ErrInvalidValue, key)
		}

		return datePropertyNode(key, cond.Operation, value, cond.Field)

	default:
		return node{}, fmt.Errorf("%w: property %q has unknown type %q", ErrInvalidValue, key, propertyType)
	}
}

func floatPropertyNode(key string, op models.Operation, value float64, field string) (node, error) {
	cast := func(b *sqlBuilder) string {
		return fmt.Sprintf("(%s->>%s)::numeric", b.column("properties"), b.nextArg(key))
	}
	get := func(c *models.Contact) (float64, bool) {
		return floatValue(c.Properties[key])
	}

	switch op {
	case models.OperationEq:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s = %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && v == value
			},
		}, nil
	case models.OperationGte:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s >= %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && v >= value
			},
		}, nil
	case models.OperationLte:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s <= %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && v <= value
			},
		}, nil
	default:
		return node{}, fmt.Errorf("%w: %q on float property %q", ErrUnsupportedOperation, op, field)
	}
}

func datePropertyNode(key string, op models.Operation, value time.Time, field string) (node, error) {
	cast := func(b *sqlBuilder) string {
		return fmt.Sprintf("(%s->>%s)::timestamptz", b.column("properties"), b.nextArg(key))
	}
	get := func(c *models.Contact) (time.Time, bool) {
		return timeValue(c.Properties[key])
	}

	switch op {
	case models.OperationEq:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s = %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && v.Equal(value)
			},
		}, nil
	case models.OperationGte:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s >= %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && !v.Before(value)
			},
		}, nil
	case models.OperationLte:
		return node{
			sql: func(b *sqlBuilder) string { return fmt.Sprintf("%s <= %s", cast(b), b.nextArg(value)) },
			match: func(c *models.Contact) bool {
				v, present := get(c)

				return present && !v.After(value)
			},
		}, nil
	default:
		return node{}, fmt.Errorf("%w: %q on date property %q", ErrUnsupportedOperation, op, field)
	}
}

// compileTagCondition evaluates tag membership through a semi-join. The
// value is a tag id or a list of tag ids; eq and contains match contacts
// holding any of them, notContains matches contacts holding none.
func compileTagCondition(cond models.Condition) (node, error) {
	tagIDs, ok := stringListValue(cond.Value)
	if !ok || len(tagIDs) == 0 {
		return node{}, fmt.Errorf("%w: tags condition wants a tag id or list of tag ids", ErrInvalidValue)
	}

	hasAny := func(c *models.Contact) bool {
		for _, id := range tagIDs {
			if c.HasTag(id) {
				return true
			}
		}

		return false
	}

	exists := func(b *sqlBuilder) string {
		placeholders := make([]string, 0, len(tagIDs))
		for _, id := range tagIDs {
			placeholders = append(placeholders, b.nextArg(id))
		}

		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM contact_tags ct WHERE ct.contact_id = %s AND ct.tag_id IN (%s))",
			b.column("id"), strings.Join(placeholders, ", "),
		)
	}

	switch cond.Operation {
	case models.OperationEq, models.OperationContains:
		return node{
			sql:   exists,
			match: hasAny,
		}, nil
	case models.OperationNotContains:
		return node{
			sql:   func(b *sqlBuilder) string { return "NOT " + exists(b) },
			match: func(c *models.Contact) bool { return !hasAny(c) },
		}, nil
	default:
		return node{}, fmt.Errorf("%w: %q on tags", ErrUnsupportedOperation, cond.Operation)
	}
}

// compileActivityCondition evaluates cached activity timestamps: presence,
// absolute comparisons, and relative windows anchored at the compile clock
// so the SQL and in-memory renderings agree.
func compileActivityCondition(cond models.Condition, now time.Time) (node, error) {
	column := activityColumns[cond.Field]
	get := func(c *models.Contact) *time.Time {
		v, _ := c.ActivityAt(cond.Field)

		return v
	}

	switch cond.Operation {
	case models.OperationIsSet:
		return node{
			sql:   func(b *sqlBuilder) string { return b.column(column) + " IS NOT NULL" },
			match: func(c *models.Contact) bool { return get(c) != nil },
		}, nil
	case models.OperationIsNotSet:
		return node{
			sql:   func(b *sqlBuilder) string { return b.column(column) + " IS NULL" },
			match: func(c *models.Contact) bool { return get(c) == nil },
		}, nil
	case models.OperationGte:
		value, ok := timeValue(cond.Value)
		if !ok {
			return node{}, fmt.Errorf("%w: field %q wants an RFC 3339 value", ErrInvalidValue, cond.Field)
		}

		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s >= %s", b.column(column), b.nextArg(value))
			},
			match: func(c *models.Contact) bool {
				v := get(c)

				return v != nil && !v.Before(value)
			},
		}, nil
	case models.OperationLte:
		value, ok := timeValue(cond.Value)
		if !ok {
			return node{}, fmt.Errorf("%w: field %q wants an RFC 3339 value", ErrInvalidValue, cond.Field)
		}

		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s <= %s", b.column(column), b.nextArg(value))
			},
			match: func(c *models.Contact) bool {
				v := get(c)

				return v != nil && !v.After(value)
			},
		}, nil
	case models.OperationInTheLastDays:
		days, ok := intValue(cond.Value)
		if !ok || days < 0 {
			return node{}, fmt.Errorf("%w: field %q wants a day count", ErrInvalidValue, cond.Field)
		}

		cutoff := now.AddDate(0, 0, -days)

		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s >= %s", b.column(column), b.nextArg(cutoff))
			},
			match: func(c *models.Contact) bool {
				v := get(c)

				return v != nil && !v.Before(cutoff)
			},
		}, nil
	case models.OperationMoreThanDaysAgo:
		days, ok := intValue(cond.Value)
		if !ok || days < 0 {
			return node{}, fmt.Errorf("%w: field %q wants a day count", ErrInvalidValue, cond.Field)
		}

		cutoff := now.AddDate(0, 0, -days)

		return node{
			sql: func(b *sqlBuilder) string {
				return fmt.Sprintf("%s < %s", b.column(column), b.nextArg(cutoff))
			},
			match: func(c *models.Contact) bool {
				v := get(c)

				return v != nil && v.Before(cutoff)
			},
		}, nil
	default:
		return node{}, fmt.Errorf("%w: %q on activity field %q", ErrUnsupportedOperation, cond.Operation, cond.Field)
	}
}

func stringValue(value any) (string, bool) {
	v, ok := value.(string)

	return v, ok
}

func floatValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func intValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}

		return int(v), true
	default:
		return 0, false
	}
}

func timeValue(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}

		return parsed, true
	default:
		return time.Time{}, false
	}
}

func stringListValue(value any) ([]string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, false
		}

		return []string{v}, true
	case []string:
		return v, len(v) > 0
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, len(out) > 0
	default:
		return nil, false
	}
}
