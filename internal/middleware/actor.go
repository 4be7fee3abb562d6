package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/giftstream/giftstream/internal/account"
)

const (
	LocalActorID   = "actor_id"
	LocalActorRole = "actor_role"
)

// ActorLookup resolves the account behind a token subject.
type ActorLookup interface {
	Get(ctx context.Context, id string) (account.Account, error)
}

// ActorClaims is the bearer token payload. Identity is issued upstream; this
// service only verifies it.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for accountID. Used by operators and tests.
func IssueToken(secret []byte, accountID string, role account.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ActorClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Actor validates the bearer token and requires the subject to be an active
// account. The account's current role, not the token claim, is stored in
// locals so a demotion takes effect immediately.
func Actor(secret []byte, accounts ActorLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := parseToken(secret, strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		acct, err := accounts.Get(c.UserContext(), claims.Subject)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return fiber.NewError(http.StatusUnauthorized, "unknown account")
			}
			return fiber.NewError(http.StatusServiceUnavailable, "actor lookup failed")
		}
		if !acct.Active() {
			return fiber.NewError(http.StatusForbidden, "account is "+string(acct.Status))
		}

		c.Locals(LocalActorID, acct.ID)
		c.Locals(LocalActorRole, string(acct.Role))
		return c.Next()
	}
}

// AdminOnly must run after Actor.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(LocalActorRole).(string)
		if role != string(account.RoleAdmin) {
			return fiber.NewError(http.StatusForbidden, "admin role required")
		}
		return c.Next()
	}
}
