package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dripkit/dripkit/pkg/persistence"
	"github.com/dripkit/dripkit/pkg/persistence/memory"
	"github.com/dripkit/dripkit/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence instance from the database URL.
// postgres:// URLs get the PostgreSQL store with migrations applied;
// memory:// gets the in-process store for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	case strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewPersistence()
	default:
		panic("Unsupported database URL: " + databaseURL)
	}
}
