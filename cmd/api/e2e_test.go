package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/comitanigiacomo/kanso-organizer/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-organizer/internal/config"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
)

type saveResponse struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testConfig(dbHost string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			JWTSecret: "e2e-secret",
			JWTIssuer: "kanso-e2e",
			TokenTTL:  time.Hour,
		},
		Database: config.DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "pgx"),
			Host:     dbHost,
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "kanso_user"),
			Password: getEnv("DB_PASSWORD", "secret"),
			Name:     getEnv("DB_NAME", "kanso_db"),
		},
	}
}

func setupServer(t *testing.T, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)

	b, err := openBackend(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("Skipping E2E test: database unreachable: %v", err)
	}
	t.Cleanup(b.Close)

	if b.db != nil {
		_, err := b.db.Exec("TRUNCATE TABLE snapshots, accounts")
		require.NoError(t, err, "Failed to truncate tables")
	}
	return newRouter(cfg, b, time.Now(), zerolog.Nop())
}

func bearer(t *testing.T, cfg *config.Config, owner string) string {
	token, err := services.NewTokenService(cfg.Server.JWTSecret, cfg.Server.JWTIssuer, time.Hour).GenerateToken(owner)
	require.NoError(t, err)
	return "Bearer " + token
}

// login registers an account and returns the Authorization header its
// login yields.
func login(t *testing.T, router *gin.Engine, email string) string {
	creds := `{"email":"` + email + `","password":"Password123!"}`

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString(creds))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req, _ = http.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(creds))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return "Bearer " + resp.Token
}

func runSnapshotLifecycle(t *testing.T, cfg *config.Config, router *gin.Engine) {
	auth := login(t, router, "e2e-owner-1@kanso.app")
	const path = "/api/v1/snapshots/organizer_data"

	t.Run("1. Save Snapshot", func(t *testing.T) {
		payload := `{"habits":[{"id":"h1","name":"Morning Run"}],"lastUpdated":"2024-03-10T08:00:00Z"}`
		req, _ := http.NewRequest(http.MethodPut, path, bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp saveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "organizer_data", resp.Key)
		assert.Equal(t, int64(1), resp.Version)
	})

	t.Run("2. Overwrite Snapshot", func(t *testing.T) {
		payload := `{"habits":[{"id":"h1","name":"Evening Run"}],"lastUpdated":"2024-03-10T20:00:00Z"}`
		req, _ := http.NewRequest(http.MethodPut, path, bytes.NewBufferString(payload))
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp saveResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.Version)
	})

	t.Run("3. Verify Overwrite", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get(adapterHTTP.VersionHeader))
		assert.Contains(t, w.Body.String(), "Evening Run")
	})

	t.Run("4. Other Owner Sees Nothing", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", bearer(t, cfg, "e2e-owner-2"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("5. Delete Snapshot", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, path, nil)
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("6. Verify Delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("7. Validation Error", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, path, bytes.NewBufferString(`{"habits": [`))
		req.Header.Set("Authorization", auth)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("8. Auth Error", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestEndToEnd_InMemory(t *testing.T) {
	cfg := testConfig("")
	router := setupServer(t, cfg)

	runSnapshotLifecycle(t, cfg, router)

	t.Run("Health reports the database as disabled", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"disabled"`)
	})
}

func TestEndToEnd_Postgres(t *testing.T) {
	cfg := testConfig(getEnv("DB_HOST", "localhost"))
	router := setupServer(t, cfg)

	runSnapshotLifecycle(t, cfg, router)

	t.Run("Health reports the database as connected", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Contains(t, w.Body.String(), `"database":"connected"`)
	})
}
