// Package removetag implements the action:remove_tag step executor.
package removetag

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
	return models.SubtypeActionRemoveTag
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tag_id": map[string]any{
				"type":        "string",
				"description": "Tag to detach from the contact",
			},
		},
		"required": []string{"tag_id"},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	tagID, _ := config["tag_id"].(string)
	if tagID == "" {
		return nil, errors.New("remove_tag: tag_id is required")
	}

	return &Executor{tags: f.tags, tagID: tagID}, nil
}
