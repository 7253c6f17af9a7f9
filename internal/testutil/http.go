package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const JWTSecret = "test-secret-test-secret-test-secret"

func Config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		JWTSecret:      JWTSecret,
		JWTTTL:         time.Hour,
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}
}

// NewApp returns a Fiber app with the production error handler and an /api
// group behind JWTMiddleware.
func NewApp(cfg *config.Config) (*fiber.App, fiber.Router) {
	app := fiber.New(fiber.Config{ErrorHandler: respond.ErrorHandler, BodyLimit: 4 << 20})
	api := app.Group("/api", auth.JWTMiddleware(cfg))
	return app, api
}

func Token(t *testing.T, cfg *config.Config, u models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(cfg.JWTSecret, cfg.JWTTTL, &u)
	require.NoError(t, err)
	return tok
}

// Do sends a JSON request and decodes the envelope of the response.
func Do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, respond.Envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env respond.Envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}
