// Package addtag implements the action:add_tag step executor.
package addtag

import (
	"errors"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Factory struct {
	tags protocol.TagMutator
}

func NewFactory(tags protocol.TagMutator) *Factory {
	return &Factory{tags: tags}
}

func (*Factory) ID() string {
	return models.SubtypeActionAddTag
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tag_id": map[string]any{
				"type":        "string",
				"description": "Tag to attach to the contact",
			},
		},
		"required": []string{"tag_id"},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	tagID, _ := config["tag_id"].(string)
	if tagID == "" {
		return nil, errors.New("add_tag: tag_id is required")
	}

	return &Executor{tags: f.tags, tagID: tagID}, nil
}
