// Package sendemail implements the action:send_email step executor.
package sendemail

import (
	"errors"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Factory struct {
	templates   protocol.TemplateResolver
	senders     protocol.SenderResolver
	mailer      protocol.Mailer
	attribution protocol.AttributionStore
}

func NewFactory(
	templates protocol.TemplateResolver,
	senders protocol.SenderResolver,
	mailer protocol.Mailer,
	attribution protocol.AttributionStore,
) *Factory {
	return &Factory{
		templates:   templates,
		senders:     senders,
		mailer:      mailer,
		attribution: attribution,
	}
}

func (*Factory) ID() string {
	return models.SubtypeActionSendEmail
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template_id": map[string]any{
				"type":        "string",
				"description": "Email template to render and send",
			},
			"sender_identity_id": map[string]any{
				"type":        "string",
				"description": "Verified sender the email goes out as",
			},
		},
		"required": []string{"template_id", "sender_identity_id"},
	}
}

func (f *Factory) Create(config map[string]any) (protocol.Executor, error) {
	templateID, _ := config["template_id"].(string)
	if templateID == "" {
		return nil, errors.New("send_email: template_id is required")
	}

	senderID, _ := config["sender_identity_id"].(string)
	if senderID == "" {
		return nil, errors.New("send_email: sender_identity_id is required")
	}

	return &Executor{
		templates:   f.templates,
		senders:     f.senders,
		mailer:      f.mailer,
		attribution: f.attribution,
		templateID:  templateID,
		senderID:    senderID,
	}, nil
}
