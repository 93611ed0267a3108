package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-engine/internal/api/http/handlers"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(_ context.Context) error { return p.err }

func newHealthApp(postgres, redis handlers.DependencyPinger) *fiber.App {
	app := fiber.New()
	h := handlers.NewHealthHandler("complaint-engine", "test", postgres, redis)
	app.Get("/health/live", h.Live)
	app.Get("/health/ready", h.Ready)
	return app
}

func TestReady_AllDependenciesUp(t *testing.T) {
	app := newHealthApp(stubPinger{}, stubPinger{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Dependencies["postgres"])
	assert.Equal(t, "ok", body.Dependencies["redis"])
}

func TestReady_PostgresDownReturns503(t *testing.T) {
	app := newHealthApp(stubPinger{err: errors.New("connection refused")}, stubPinger{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "connection refused", body.Error.Details["postgres"])
	assert.Equal(t, "ok", body.Error.Details["redis"])
}

func TestReady_RedisDownReturns503(t *testing.T) {
	app := newHealthApp(stubPinger{}, stubPinger{err: errors.New("redis client not configured")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLive_AlwaysOK(t *testing.T) {
	app := newHealthApp(stubPinger{err: errors.New("down")}, stubPinger{err: errors.New("down")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
