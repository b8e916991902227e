// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dripkit/dripkit/pkg/attribution"
	"github.com/dripkit/dripkit/pkg/mailer"
	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/protocol"
	"github.com/dripkit/dripkit/pkg/registry"
)

// MailerConfig carries the delivery provider settings for worker
// processes that execute send-email steps.
type MailerConfig struct {
	APIURL   string
	APIKey   string
	RedisURL string
}

// NewRegistry builds the executor registry with every built-in step
// executor registered against the given persistence.
func NewRegistry(ctx context.Context, logger *slog.Logger, store persistence.Persistence, mailerConfig MailerConfig) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterDefaultExecutors(registry.Dependencies{
		Tags:        store,
		Templates:   store,
		Senders:     store,
		Mailer:      mailer.NewHTTPMailer(mailerConfig.APIURL, mailerConfig.APIKey),
		Attribution: newAttributionStore(ctx, mailerConfig.RedisURL),
	})

	return reg
}

// NewAuthoringRegistry builds a registry for processes that only author
// steps and validate their configuration. No delivery dependencies are
// wired because nothing is ever executed.
func NewAuthoringRegistry(logger *slog.Logger, store persistence.Persistence) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterDefaultExecutors(registry.Dependencies{
		Tags:      store,
		Templates: store,
		Senders:   store,
	})

	return reg
}

func newAttributionStore(ctx context.Context, redisURL string) protocol.AttributionStore {
	store, err := attribution.NewRedisStoreFromURL(ctx, redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create attribution store: %w", err))
	}

	return store
}
