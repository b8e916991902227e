package protocol

import (
	"context"

	"github.com/dripkit/dripkit/pkg/models"
)

// TemplateResolver looks up the email template a send-email step references.
type TemplateResolver interface {
	EmailTemplateByID(ctx context.Context, id string) (*models.EmailTemplate, error)
}

// SenderResolver looks up the sender identity a send-email step references.
type SenderResolver interface {
	SenderIdentityByID(ctx context.Context, id string) (*models.SenderIdentity, error)
}

// TagMutator attaches and detaches tags on contacts. Both operations are
// idempotent: attaching an existing tag or detaching a missing one is a
// no-op.
type TagMutator interface {
	AttachTag(ctx context.Context, contactID, tagID string) error
	DetachTag(ctx context.Context, contactID, tagID string) error
}
