package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupAppliesLevel(t *testing.T) {
	Setup("dripkit-test", "warn")

	ctx := context.Background()
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelWarn))

	Setup("dripkit-test", "debug")
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug))
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
	Setup("dripkit-test", "chatty")

	ctx := context.Background()
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
}
