package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frozen-pos/pkg/apperror"
	"frozen-pos/pkg/jwt"
)

type stubAuth struct {
	tokens *jwt.Manager
	err    error
}

func (s stubAuth) Authenticate(_ context.Context, token string) (*jwt.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("%s", err.Error())
	}
	return claims, nil
}

func newApp(auth Authenticator, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/orders", RequireAuth(auth), guard, func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_name").(string))
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	tokens := jwt.NewManager("secret", time.Hour)
	token, err := tokens.Generate(uuid.New(), "kasir@shop.test", "Kasir", "CASHIER", []string{"order:view"}, "v1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		auth   Authenticator
		guard  fiber.Handler
		header string
		want   int
	}{
		{"no header", stubAuth{tokens: tokens}, RequirePrivilege("order:view"), "", fiber.StatusUnauthorized},
		{"wrong scheme", stubAuth{tokens: tokens}, RequirePrivilege("order:view"), "Basic " + token, fiber.StatusUnauthorized},
		{"bad token", stubAuth{tokens: tokens}, RequirePrivilege("order:view"), "Bearer nope", fiber.StatusUnauthorized},
		{"replaced session", stubAuth{err: apperror.Unauthorized("session expired")}, RequirePrivilege("order:view"), "Bearer " + token, fiber.StatusUnauthorized},
		{"store down", stubAuth{err: apperror.Transient(nil, "db unavailable")}, RequirePrivilege("order:view"), "Bearer " + token, fiber.StatusServiceUnavailable},
		{"missing privilege", stubAuth{tokens: tokens}, RequirePrivilege("report:view"), "Bearer " + token, fiber.StatusForbidden},
		{"any privilege", stubAuth{tokens: tokens}, RequireAnyPrivilege("report:view", "order:view"), "Bearer " + token, fiber.StatusOK},
		{"ok", stubAuth{tokens: tokens}, RequirePrivilege("order:view"), "Bearer " + token, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := newApp(tt.auth, tt.guard).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
