package models

// GroupOperator combines the members of a filter group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
)

// Operation compares a condition's field against its value.
type Operation string

const (
	OperationEq          Operation = "eq"
	OperationStartsWith  Operation = "startsWith"
	OperationEndsWith    Operation = "endsWith"
	OperationGte         Operation = "gte"
	OperationLte         Operation = "lte"
	OperationContains    Operation = "contains"
	OperationNotContains Operation = "notContains"

	// Activity timestamp operations.
	OperationIsSet           Operation = "isSet"
	OperationIsNotSet        Operation = "isNotSet"
	OperationInTheLastDays   Operation = "inTheLastDays"
	OperationMoreThanDaysAgo Operation = "moreThanDaysAgo"
)

// Condition is one (field, operation, value) leaf of a filter. The field
// name selects the evaluator: a direct contact attribute, a
// "properties.<key>" custom property, "tags", or an activity timestamp.
type Condition struct {
	Field     string    `json:"field"     validate:"required"`
	Operation Operation `json:"operation" validate:"required"`
	Value     any       `json:"value"`
}

// FilterGroup is the declarative nested boolean filter: either a composite
// of sub-groups or a leaf of conditions, combined with the group operator.
type FilterGroup struct {
	Type       GroupOperator `json:"type" validate:"required,oneof=and or"`
	Groups     []FilterGroup `json:"groups,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty"`
}

// IsLeaf reports whether the group holds conditions rather than sub-groups.
func (g *FilterGroup) IsLeaf() bool {
	return len(g.Groups) == 0
}
