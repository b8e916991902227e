package filter_test

import (
	"testing"
	"time"

	"github.com/dripkit/dripkit/pkg/filter"
	"github.com/dripkit/dripkit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAudience() *models.Audience {
	return &models.Audience{
		ID:   "aud-1",
		Name: "Newsletter",
		PropertyDefinitions: []models.PropertyDefinition{
			{Key: "plan", Type: models.PropertyTypeText},
			{Key: "seats", Type: models.PropertyTypeFloat},
			{Key: "trial", Type: models.PropertyTypeBoolean},
			{Key: "signed_up_at", Type: models.PropertyTypeDate},
		},
	}
}

func leaf(op models.GroupOperator, conditions ...models.Condition) models.FilterGroup {
	return models.FilterGroup{Type: op, Conditions: conditions}
}

func compile(t *testing.T, group models.FilterGroup) *filter.Predicate {
	t.Helper()

	predicate, err := filter.Compile(&group, testAudience())
	require.NoError(t, err)

	return predicate
}

func TestCompileMatchesEmailPrefix(t *testing.T) {
	group := models.FilterGroup{
		Type: models.GroupAnd,
		Groups: []models.FilterGroup{
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldEmail,
				Operation: models.OperationStartsWith,
				Value:     "alice",
			}),
		},
	}

	predicate := compile(t, group)

	alice := &models.Contact{Email: "alice@x.com"}
	bob := &models.Contact{Email: "bob@x.com"}

	assert.True(t, predicate.Match(alice))
	assert.False(t, predicate.Match(bob))
}

func TestCompileOrOfLeaves(t *testing.T) {
	group := models.FilterGroup{
		Type: models.GroupOr,
		Groups: []models.FilterGroup{
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldFirstName,
				Operation: models.OperationEq,
				Value:     "Ada",
			}),
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldLastName,
				Operation: models.OperationEq,
				Value:     "Lovelace",
			}),
		},
	}

	predicate := compile(t, group)

	assert.True(t, predicate.Match(&models.Contact{FirstName: "Ada"}))
	assert.True(t, predicate.Match(&models.Contact{LastName: "Lovelace"}))
	assert.True(t, predicate.Match(&models.Contact{FirstName: "Ada", LastName: "Lovelace"}))
	assert.False(t, predicate.Match(&models.Contact{FirstName: "Grace", LastName: "Hopper"}))
}

func TestCompileAndWithinOrRequiresAllLeafConditions(t *testing.T) {
	group := models.FilterGroup{
		Type: models.GroupOr,
		Groups: []models.FilterGroup{
			leaf(models.GroupAnd,
				models.Condition{Field: models.FieldEmail, Operation: models.OperationEndsWith, Value: "@gmail.com"},
				models.Condition{Field: models.FieldFirstName, Operation: models.OperationEq, Value: "Ada"},
			),
		},
	}

	predicate := compile(t, group)

	assert.True(t, predicate.Match(&models.Contact{Email: "ada@gmail.com", FirstName: "Ada"}))
	assert.False(t, predicate.Match(&models.Contact{Email: "ada@gmail.com", FirstName: "Grace"}))
	assert.False(t, predicate.Match(&models.Contact{Email: "ada@yahoo.com", FirstName: "Ada"}))
}

func TestCompileTagMembershipRoundTrip(t *testing.T) {
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldTags,
		Operation: models.OperationEq,
		Value:     "tag-vip",
	}))

	contact := &models.Contact{ID: "c-1"}
	assert.False(t, predicate.Match(contact))

	contact.Tags = append(contact.Tags, "tag-vip")
	assert.True(t, predicate.Match(contact))

	contact.Tags = nil
	assert.False(t, predicate.Match(contact))
}

func TestCompileTagExclusion(t *testing.T) {
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldTags,
		Operation: models.OperationNotContains,
		Value:     []string{"tag-churned", "tag-bounced"},
	}))

	assert.True(t, predicate.Match(&models.Contact{Tags: []string{"tag-vip"}}))
	assert.False(t, predicate.Match(&models.Contact{Tags: []string{"tag-bounced"}}))
}

func TestCompileEmptyGroupsAlwaysMatch(t *testing.T) {
	// Documented policy: empty condition lists and empty group lists both
	// compile to an always-true predicate.
	for _, op := range []models.GroupOperator{models.GroupAnd, models.GroupOr} {
		predicate := compile(t, models.FilterGroup{Type: op})
		assert.True(t, predicate.Match(&models.Contact{Email: "anyone@x.com"}))

		sql, args := predicate.SQL("c", 1)
		assert.Equal(t, "TRUE", sql)
		assert.Empty(t, args)
	}
}

func TestCompileNilGroupAlwaysMatches(t *testing.T) {
	// An automation without a trigger filter enrolls everyone; nil follows
	// the same policy as an empty group.
	predicate, err := filter.Compile(nil, testAudience())
	require.NoError(t, err)

	assert.True(t, predicate.Match(&models.Contact{Email: "anyone@x.com"}))

	sql, args := predicate.SQL("c", 1)
	assert.Equal(t, "TRUE", sql)
	assert.Empty(t, args)
}

func TestCompileUnknownPropertyMatchesNothing(t *testing.T) {
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     "properties.nonexistent",
		Operation: models.OperationEq,
		Value:     "x",
	}))

	assert.False(t, predicate.Match(&models.Contact{Properties: map[string]any{"nonexistent": "x"}}))

	sql, _ := predicate.SQL("c", 1)
	assert.Equal(t, "FALSE", sql)
}

func TestCompileTypedProperties(t *testing.T) {
	contact := &models.Contact{Properties: map[string]any{
		"plan":         "enterprise",
		"seats":        float64(25),
		"trial":        false,
		"signed_up_at": "2026-01-10T00:00:00Z",
	}}

	cases := []struct {
		name  string
		cond  models.Condition
		match bool
	}{
		{"text eq", models.Condition{Field: "properties.plan", Operation: models.OperationEq, Value: "enterprise"}, true},
		{"text contains", models.Condition{Field: "properties.plan", Operation: models.OperationContains, Value: "prise"}, true},
		{"float gte", models.Condition{Field: "properties.seats", Operation: models.OperationGte, Value: float64(10)}, true},
		{"float lte", models.Condition{Field: "properties.seats", Operation: models.OperationLte, Value: float64(10)}, false},
		{"bool eq", models.Condition{Field: "properties.trial", Operation: models.OperationEq, Value: false}, true},
		{"date gte", models.Condition{Field: "properties.signed_up_at", Operation: models.OperationGte, Value: "2026-01-01T00:00:00Z"}, true},
		{"date lte", models.Condition{Field: "properties.signed_up_at", Operation: models.OperationLte, Value: "2025-12-31T00:00:00Z"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			predicate := compile(t, leaf(models.GroupAnd, tc.cond))
			assert.Equal(t, tc.match, predicate.Match(contact))
		})
	}
}

func TestCompileMissingPropertyNeverMatches(t *testing.T) {
	// notContains on an absent property is still false, mirroring SQL NULL
	// comparison semantics.
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     "properties.plan",
		Operation: models.OperationNotContains,
		Value:     "free",
	}))

	assert.False(t, predicate.Match(&models.Contact{}))
	assert.True(t, predicate.Match(&models.Contact{Properties: map[string]any{"plan": "paid"}}))
}

func TestCompileActivityWindows(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -3)
	stale := now.AddDate(0, 0, -30)

	within := leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldLastOpenedBroadcastEmailAt,
		Operation: models.OperationInTheLastDays,
		Value:     7,
	})

	predicate, err := filter.CompileAt(&within, testAudience(), now)
	require.NoError(t, err)

	assert.True(t, predicate.Match(&models.Contact{LastOpenedBroadcastEmailAt: &recent}))
	assert.False(t, predicate.Match(&models.Contact{LastOpenedBroadcastEmailAt: &stale}))
	assert.False(t, predicate.Match(&models.Contact{}))

	before := leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldLastSentAutomationEmailAt,
		Operation: models.OperationMoreThanDaysAgo,
		Value:     14,
	})

	predicate, err = filter.CompileAt(&before, testAudience(), now)
	require.NoError(t, err)

	assert.True(t, predicate.Match(&models.Contact{LastSentAutomationEmailAt: &stale}))
	assert.False(t, predicate.Match(&models.Contact{LastSentAutomationEmailAt: &recent}))

	presence := leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldLastClickedAutomationEmailLinkAt,
		Operation: models.OperationIsNotSet,
	})

	predicate, err = filter.CompileAt(&presence, testAudience(), now)
	require.NoError(t, err)

	assert.True(t, predicate.Match(&models.Contact{}))
	assert.False(t, predicate.Match(&models.Contact{LastClickedAutomationEmailLinkAt: &recent}))
}

func TestCompileSQLRendering(t *testing.T) {
	group := models.FilterGroup{
		Type: models.GroupOr,
		Groups: []models.FilterGroup{
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldEmail,
				Operation: models.OperationStartsWith,
				Value:     "alice",
			}),
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldTags,
				Operation: models.OperationEq,
				Value:     "tag-vip",
			}),
		},
	}

	predicate := compile(t, group)

	sql, args := predicate.SQL("c", 3)
	assert.Equal(t,
		"(c.email LIKE $3 OR EXISTS (SELECT 1 FROM contact_tags ct WHERE ct.contact_id = c.id AND ct.tag_id IN ($4)))",
		sql)
	assert.Equal(t, []any{"alice%", "tag-vip"}, args)
}

func TestCompileSQLBindsPropertyKeys(t *testing.T) {
	// Property keys come from user input, so they travel as query arguments
	// rather than being spliced into the fragment.
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     "properties.plan",
		Operation: models.OperationEq,
		Value:     "pro",
	}))

	sql, args := predicate.SQL("c", 1)
	assert.Equal(t, "c.properties->>$1 = $2", sql)
	assert.Equal(t, []any{"plan", "pro"}, args)

	predicate = compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     "properties.seats",
		Operation: models.OperationGte,
		Value:     float64(10),
	}))

	sql, args = predicate.SQL("c", 1)
	assert.Equal(t, "(c.properties->>$1)::numeric >= $2", sql)
	assert.Equal(t, []any{"seats", float64(10)}, args)
}

func TestCompileIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	group := models.FilterGroup{
		Type: models.GroupAnd,
		Groups: []models.FilterGroup{
			leaf(models.GroupOr,
				models.Condition{Field: models.FieldEmail, Operation: models.OperationContains, Value: "@corp."},
				models.Condition{Field: "properties.seats", Operation: models.OperationGte, Value: float64(50)},
			),
			leaf(models.GroupAnd, models.Condition{
				Field:     models.FieldLastOpenedAutomationEmailAt,
				Operation: models.OperationInTheLastDays,
				Value:     30,
			}),
		},
	}

	first, err := filter.CompileAt(&group, testAudience(), now)
	require.NoError(t, err)
	second, err := filter.CompileAt(&group, testAudience(), now)
	require.NoError(t, err)

	firstSQL, firstArgs := first.SQL("c", 1)
	secondSQL, secondArgs := second.SQL("c", 1)

	assert.Equal(t, firstSQL, secondSQL)
	assert.Equal(t, firstArgs, secondArgs)
}

func TestCompileEscapesLikeWildcards(t *testing.T) {
	predicate := compile(t, leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldEmail,
		Operation: models.OperationContains,
		Value:     "100%_sure",
	}))

	_, args := predicate.SQL("c", 1)
	require.Len(t, args, 1)
	assert.Equal(t, `%100\%\_sure%`, args[0])

	assert.True(t, predicate.Match(&models.Contact{Email: "100%_sure@x.com"}))
	assert.False(t, predicate.Match(&models.Contact{Email: "100x_sure@x.com"}))
}

func TestValidateRejectsMalformedFilters(t *testing.T) {
	audience := testAudience()

	ambiguous := models.FilterGroup{
		Type:       models.GroupAnd,
		Groups:     []models.FilterGroup{leaf(models.GroupAnd)},
		Conditions: []models.Condition{{Field: models.FieldEmail, Operation: models.OperationEq, Value: "x"}},
	}
	require.ErrorIs(t, filter.Validate(&ambiguous, audience), filter.ErrAmbiguousGroup)

	badOp := leaf(models.GroupAnd, models.Condition{
		Field:     models.FieldTags,
		Operation: models.OperationStartsWith,
		Value:     "tag-vip",
	})
	require.ErrorIs(t, filter.Validate(&badOp, audience), filter.ErrUnsupportedOperation)

	badValue := leaf(models.GroupAnd, models.Condition{
		Field:     "properties.seats",
		Operation: models.OperationGte,
		Value:     "not-a-number",
	})
	require.ErrorIs(t, filter.Validate(&badValue, audience), filter.ErrInvalidValue)

	unknownField := leaf(models.GroupAnd, models.Condition{
		Field:     "shoeSize",
		Operation: models.OperationEq,
		Value:     "44",
	})
	require.ErrorIs(t, filter.Validate(&unknownField, audience), filter.ErrUnknownField)

	badType := models.FilterGroup{Type: "nand"}
	require.Error(t, filter.Validate(&badType, audience))
}

func TestValidateRejectsUndeclaredPropertyKey(t *testing.T) {
	audience := testAudience()

	// Authoring is strict: a key the audience schema does not declare is an
	// error, even though compilation maps it to match-nothing so filters
	// persisted before a property was removed stay executable.
	undeclared := leaf(models.GroupAnd, models.Condition{
		Field:     "properties.favorite_color",
		Operation: models.OperationEq,
		Value:     "green",
	})
	require.ErrorIs(t, filter.Validate(&undeclared, audience), filter.ErrUnknownField)

	_, err := filter.Compile(&undeclared, audience)
	require.NoError(t, err)

	nested := models.FilterGroup{
		Type:   models.GroupOr,
		Groups: []models.FilterGroup{undeclared},
	}
	require.ErrorIs(t, filter.Validate(&nested, audience), filter.ErrUnknownField)

	assert.NoError(t, filter.Validate(nil, audience))
}
