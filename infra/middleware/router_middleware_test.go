package middleware

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"query_router/pkg/apperr"
	"query_router/pkg/snowflake"
)

func newTestApp(t *testing.T, handlers ...fiber.Handler) *fiber.App {
	t.Helper()
	ids, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID(ids), Recover())
	for _, h := range handlers {
		app.Use(h)
	}
	return app
}

func decodeError(t *testing.T, body io.Reader) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	app := newTestApp(t)
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperr.NotFound("ticket").WithDetail("ticket_id", "EML-H-1")
	})
	app.Get("/db", func(c *fiber.Ctx) error {
		return apperr.DatabaseError("create ticket", errors.New("disk full"))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	body := decodeError(t, resp.Body)
	assert.False(t, body.Success)
	assert.Equal(t, apperr.CodeNotFound, body.Error.Code)
	assert.Equal(t, "EML-H-1", body.Error.Details["ticket_id"])
	assert.NotEmpty(t, body.RequestID)

	resp, err = app.Test(httptest.NewRequest("GET", "/db", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	body = decodeError(t, resp.Body)
	assert.Equal(t, apperr.CodeDatabaseError, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "disk full")

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, apperr.CodeInternalError, decodeError(t, resp.Body).Error.Code)
}

func TestRequestID_EchoesClientHeader(t *testing.T) {
	app := newTestApp(t)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "client-123", resp.Header.Get("X-Request-ID"))

	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRecover(t *testing.T) {
	app := newTestApp(t)
	app.Get("/panic", func(c *fiber.Ctx) error { panic("nil map") })

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, apperr.CodeInternalError, decodeError(t, resp.Body).Error.Code)
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	app := newTestApp(t, JWTAuth(secret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	valid, err := SignToken(secret, "agent-7", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	require.NoError(t, err)
	expired, err := SignToken(secret, "agent-7", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	wrongKey, err := SignToken("other", "agent-7", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	noExp, err := SignToken(secret, "agent-7", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"valid", "Bearer " + valid, 200, ""},
		{"missing", "", 401, apperr.CodeUnauthorized},
		{"not bearer", "Basic abc", 401, apperr.CodeUnauthorized},
		{"expired", "Bearer " + expired, 401, apperr.CodeTokenExpired},
		{"wrong key", "Bearer " + wrongKey, 401, apperr.CodeInvalidToken},
		{"no exp", "Bearer " + noExp, 401, apperr.CodeInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, resp.Body).Error.Code)
			} else {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "agent-7", string(b))
			}
		})
	}
}

func TestJWTAuth_DisabledWithoutSecret(t *testing.T) {
	app := newTestApp(t, JWTAuth(""))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	app := newTestApp(t, rl.Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 429, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, apperr.CodeRateLimited, decodeError(t, resp.Body).Error.Code)

	// window rolls over
	rl.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t, SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
