package sendemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/attribution"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/protocol"
)

type Executor struct {
	templates   protocol.TemplateResolver
	senders     protocol.SenderResolver
	mailer      protocol.Mailer
	attribution protocol.AttributionStore
	templateID  string
	senderID    string
}

// Execute sends the configured template to the contact. A template or
// sender deleted after the step was authored is logged and skipped rather
// than failing the traversal. A send already attributed to this
// (step, contact) pair is not repeated on redelivery.
func (e *Executor) Execute(ctx context.Context, executionCtx protocol.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With(
		"executor", "send_email",
		"template_id", e.templateID,
		"contact_id", executionCtx.Contact.ID,
	)

	key := attribution.StepSendKey(executionCtx.Step.ID, executionCtx.Contact.ID)

	messageID, err := e.attribution.LastMessageID(ctx, key)
	if err == nil && messageID != "" {
		logger.Info("Email already sent for this step, skipping", "message_id", messageID)

		return map[string]any{"message_id": messageID, protocol.ResultSkippedKey: true}, nil
	}

	template, err := e.templates.EmailTemplateByID(ctx, e.templateID)
	if err != nil {
		if errors.Is(err, persistence.ErrEmailTemplateNotFound) {
			logger.Warn("Email template deleted, skipping send")

			return map[string]any{protocol.ResultSkippedKey: true}, nil
		}

		return nil, fmt.Errorf("resolve template %s: %w", e.templateID, err)
	}

	sender, err := e.senders.SenderIdentityByID(ctx, e.senderID)
	if err != nil {
		if errors.Is(err, persistence.ErrSenderIdentityNotFound) {
			logger.Warn("Sender identity deleted, skipping send", "sender_identity_id", e.senderID)

			return map[string]any{protocol.ResultSkippedKey: true}, nil
		}

		return nil, fmt.Errorf("resolve sender identity %s: %w", e.senderID, err)
	}

	messageID, err = e.mailer.Send(ctx, protocol.SendRequest{
		FromName:  sender.FromName,
		FromEmail: sender.FromEmail,
		To:        executionCtx.Contact.Email,
		Subject:   template.Subject,
		HTML:      template.HTML,
		Text:      template.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	err = e.attribution.RecordSend(ctx, key, messageID)
	if err != nil {
		// The email is out; losing attribution is not worth a retry that
		// would send it again.
		logger.Error("Failed to record send attribution", "error", err)
	}

	logger.Info("Email sent", "message_id", messageID)

	return map[string]any{"message_id": messageID}, nil
}
