package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop-chat/backend/ai"
	gmodels "tabletop-chat/backend/game/models"
	"tabletop-chat/backend/internal/database"
	"tabletop-chat/backend/pkg/config"
	"tabletop-chat/backend/pkg/di"
	"tabletop-chat/backend/pkg/logger"
)

func newTestRouter(t *testing.T, tweak func(*config.Config)) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("APP_ENV", "test")
	t.Setenv("REDIS_URL", "")
	t.Setenv("VAULT_ENABLED", "false")

	cfg := config.Load()
	cfg.OpenAPI.SchemaPath = "../../api/openapi.yaml"
	cfg.Security.RateLimit = 100
	cfg.Security.RateLimitBurst = 100
	if tweak != nil {
		tweak(cfg)
	}

	engine := ai.EngineFunc(func(context.Context, string) (string, error) {
		return ai.NoReaction, nil
	})
	c, err := di.New(context.Background(), cfg, database.NewTestDB(t), logger.Nop(), di.Options{Engine: engine, TraceOutput: io.Discard})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)

	r := New(c)
	r.SetupRoutes()
	t.Cleanup(r.Stop)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGameAndMessageRoutes(t *testing.T) {
	r := newTestRouter(t, nil)

	for _, prefix := range []string{"", "/api/v1"} {
		w := do(r.Engine, http.MethodPost, prefix+"/games", map[string]any{"name": "Valdor", "lore": "Dragons."})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

		var game gmodels.Game
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &game))

		w = do(r.Engine, http.MethodPost, prefix+"/messages", map[string]any{
			"content": "The tavern door creaks.",
			"gameId":  game.ID,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = do(r.Engine, http.MethodGet, prefix+"/messages/"+game.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "The tavern door creaks.")
	}
}

func TestRequestsAreValidatedAgainstSchema(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r.Engine, http.MethodPost, "/games", map[string]any{"name": "No lore"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = do(r.Engine, http.MethodGet, "/api/docs/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)
	r.Container.Health.RunChecks(context.Background())

	for _, path := range []string{"/health", "/api/health", "/api/v1/health"} {
		w := do(r.Engine, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := do(r.Engine, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestMetricsCanBeDisabled(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Server.MetricsEnabled = false })

	w := do(r.Engine, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.Security.RateLimit = 1
		cfg.Security.RateLimitBurst = 1
	})

	body := map[string]any{"name": "Valdor", "lore": "Dragons."}
	assert.Equal(t, http.StatusCreated, do(r.Engine, http.MethodPost, "/games", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r.Engine, http.MethodPost, "/games", body).Code)

	// reads are not limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r.Engine, http.MethodGet, "/games", nil).Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, "/games", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
