package auth

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTMiddleware(secret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(Actor(c))
	})
	app.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func call(t *testing.T, app *fiber.App, path, header string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func token(t *testing.T, id Identity, ttl time.Duration) string {
	t.Helper()
	tok, err := GenerateToken(secret, id, ttl)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestJWTMiddlewareSetsActor(t *testing.T) {
	app := newApp()

	status, body := call(t, app, "/whoami", token(t, Identity{UserID: 4, Name: "ayla", Role: models.RoleStaff}, time.Hour))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ayla", body)

	status, body = call(t, app, "/whoami", token(t, Identity{UserID: 9, Role: models.RoleStaff}, time.Hour))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user:9", body)
}

func TestJWTMiddlewareRejects(t *testing.T) {
	app := newApp()

	expired := token(t, Identity{UserID: 1, Role: models.RoleAdmin}, -time.Minute)
	foreign, err := GenerateToken("another-secret-another-secret-xx", Identity{UserID: 1}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTCustomClaims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":       "",
		"wrong scheme":  "Basic abc",
		"garbage":       "Bearer not-a-token",
		"expired":       expired,
		"wrong secret":  "Bearer " + foreign,
		"unsigned none": "Bearer " + none,
	} {
		t.Run(name, func(t *testing.T) {
			status, _ := call(t, app, "/whoami", header)
			assert.Equal(t, fiber.StatusUnauthorized, status)
		})
	}
}

func TestRequireRole(t *testing.T) {
	app := newApp()

	status, _ := call(t, app, "/admin", token(t, Identity{UserID: 1, Name: "root", Role: models.RoleAdmin}, time.Hour))
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, "/admin", token(t, Identity{UserID: 2, Name: "clerk", Role: models.RoleStaff}, time.Hour))
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestActorDefaultsToSystem(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(Actor(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, models.SystemActor, string(body))
}
