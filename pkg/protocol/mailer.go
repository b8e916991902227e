package protocol

import "context"

// SendRequest is one transactional email handed to the delivery provider.
type SendRequest struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	HTML      string
	Text      string
}

// Mailer delivers a single email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, req SendRequest) (string, error)
}

// AttributionStore records which provider message id was produced by a
// given send scope, so later engagement events can be attributed back.
// LastMessageID returns an empty string when no send is recorded.
type AttributionStore interface {
	RecordSend(ctx context.Context, key, messageID string) error
	LastMessageID(ctx context.Context, key string) (string, error)
}
