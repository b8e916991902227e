package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripkit/dripkit/pkg/models"
	"github.com/dripkit/dripkit/pkg/persistence/memory"
	"github.com/dripkit/dripkit/pkg/registry"
)

func setupTestApp() (*fiber.App, *memory.Persistence) {
	store := memory.NewPersistence()

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultExecutors(registry.Dependencies{
		Tags:      store,
		Templates: store,
		Senders:   store,
	})

	api := NewAPI(
		slog.Default(),
		store,
		reg,
	)

	return api.App(), store
}

func TestAPIRootEndpoint(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Dripkit API", string(body))
}

func TestAPILiveness(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIGetAudiencesEmpty(t *testing.T) {
	app, _ := setupTestApp()

	req := httptest.NewRequest(http.MethodGet, "/audiences", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var audiences []*models.Audience
	require.NoError(t, json.Unmarshal(body, &audiences))
	assert.Empty(t, audiences)
}
