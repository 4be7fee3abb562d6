package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/giftstream/giftstream/internal/account"
)

var testSecret = []byte("test-secret")

func actorApp(t *testing.T) (*fiber.App, *account.Service) {
	t.Helper()
	accounts := account.NewService(account.NewMemoryRepository())
	app := fiber.New()
	protected := app.Group("/", Actor(testSecret, accounts))
	protected.Get("/me", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalActorID).(string))
	})
	protected.Get("/admin", AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, accounts
}

func call(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestActorAcceptsValidToken(t *testing.T) {
	app, accounts := actorApp(t)
	user, err := accounts.Register(context.Background(), account.RegisterInput{DisplayName: "viewer"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := IssueToken(testSecret, user.ID, user.Role, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if got := call(t, app, "/me", token); got != http.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
	if got := call(t, app, "/admin", token); got != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", got)
	}
}

func TestActorRejectsBadTokens(t *testing.T) {
	app, accounts := actorApp(t)
	user, _ := accounts.Register(context.Background(), account.RegisterInput{DisplayName: "viewer"})

	if got := call(t, app, "/me", ""); got != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", got)
	}

	forged, _ := IssueToken([]byte("other-secret"), user.ID, user.Role, time.Minute)
	if got := call(t, app, "/me", forged); got != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", got)
	}

	expired, _ := IssueToken(testSecret, user.ID, user.Role, -time.Minute)
	if got := call(t, app, "/me", expired); got != http.StatusUnauthorized {
		t.Fatalf("expired token: expected 401, got %d", got)
	}

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": user.ID}).SignedString(testSecret)
	if got := call(t, app, "/me", noExpiry); got != http.StatusUnauthorized {
		t.Fatalf("token without expiry: expected 401, got %d", got)
	}

	ghost, _ := IssueToken(testSecret, "00000000-0000-0000-0000-000000000000", account.RoleUser, time.Minute)
	if got := call(t, app, "/me", ghost); got != http.StatusUnauthorized {
		t.Fatalf("unknown subject: expected 401, got %d", got)
	}
}

func TestActorUsesCurrentAccountState(t *testing.T) {
	app, accounts := actorApp(t)
	ctx := context.Background()
	admin, _ := accounts.EnsureAdmin(ctx, "ops")
	user, _ := accounts.Register(ctx, account.RegisterInput{DisplayName: "viewer"})

	// A token claiming admin does not grant admin rights.
	claimsAdmin, _ := IssueToken(testSecret, user.ID, account.RoleAdmin, time.Minute)
	if got := call(t, app, "/admin", claimsAdmin); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}

	adminToken, _ := IssueToken(testSecret, admin.ID, admin.Role, time.Minute)
	if got := call(t, app, "/admin", adminToken); got != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", got)
	}

	if _, err := accounts.SetStatus(ctx, admin.ID, user.ID, account.StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	token, _ := IssueToken(testSecret, user.ID, user.Role, time.Minute)
	if got := call(t, app, "/me", token); got != http.StatusForbidden {
		t.Fatalf("suspended account: expected 403, got %d", got)
	}
}

func rateLimitedApp(cache *redis.Client, perMin int) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(LocalActorID, c.Get("X-Test-Actor"))
		return c.Next()
	})
	app.Post("/gifts", SpendRateLimit(cache, perMin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusCreated)
	})
	return app
}

func spend(t *testing.T, app *fiber.App, actor string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/gifts", nil)
	req.Header.Set("X-Test-Actor", actor)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestSpendRateLimitWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := rateLimitedApp(cache, 3)
	for i := 0; i < 3; i++ {
		if got := spend(t, app, "alice"); got != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, got)
		}
	}
	if got := spend(t, app, "alice"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
	if got := spend(t, app, "bob"); got != http.StatusCreated {
		t.Fatalf("other actors keep their own budget, got %d", got)
	}
	if ttl := mr.TTL("rl:spend:alice"); ttl <= 0 {
		t.Fatalf("expected window expiry on counter, got %v", ttl)
	}
}

func TestSpendRateLimitInProcess(t *testing.T) {
	app := rateLimitedApp(nil, 2)
	for i := 0; i < 2; i++ {
		if got := spend(t, app, "alice"); got != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, got)
		}
	}
	if got := spend(t, app, "alice"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", got)
	}
}
