// Package ifelse implements the rule:if_else step executor. The rule
// evaluates its filter against the contact and reports which branch the
// traversal should follow.
package ifelse

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) ID() string {
	return models.SubtypeRuleIfElse
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filter": map[string]any{
				"type":        "object",
				"description": "Filter group the contact is evaluated against",
				"properties": map[string]any{
					"type": map[string]any{
						"type": "string",
						"enum": []string{"and", "or"},
					},
					"groups":     map[string]any{"type": "array"},
					"conditions": map[string]any{"type": "array"},
				},
				"required": []string{"type"},
			},
		},
		"required": []string{"filter"},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	raw, ok := config["filter"]
	if !ok {
		return nil, errors.New("if_else: filter is required")
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("if_else: encode filter: %w", err)
	}

	var group models.FilterGroup

	err = json.Unmarshal(payload, &group)
	if err != nil {
		return nil, fmt.Errorf("if_else: decode filter: %w", err)
	}

	if group.Type != models.GroupAnd && group.Type != models.GroupOr {
		return nil, fmt.Errorf("if_else: unknown group operator %q", group.Type)
	}

	return &Executor{group: group}, nil
}
