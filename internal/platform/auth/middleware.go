// Package auth authenticates requests and places the acting staff member
// into the request context. Authorization itself lives in the policy package.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/klinik/klinik/internal/platform/policy"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the token payload issued for clinic staff.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Config controls token verification.
type Config struct {
	// Secret is the HS256 signing key.
	Secret []byte
	// Issuer and Audience are enforced when non-empty.
	Issuer   string
	Audience string
}

// NewConfig builds a Config from the string-typed settings the config
// package loads.
func NewConfig(secret, issuer, audience string) Config {
	return Config{Secret: []byte(secret), Issuer: issuer, Audience: audience}
}

// Middleware validates the bearer token and stores the actor in context.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actorID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
			}
			role := policy.Role(claims.Role)
			if !role.Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown role claim")
			}

			ctx := WithActor(c.Request().Context(), policy.Actor{ID: actorID, Role: role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// DevMiddleware grants an admin actor to unauthenticated requests. Serve
// refuses to enable it outside development mode.
func DevMiddleware() echo.MiddlewareFunc {
	devActor := policy.Actor{ID: uuid.New(), Role: policy.RoleAdmin}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := ActorFromContext(c.Request().Context()); !ok {
				ctx := WithActor(c.Request().Context(), devActor)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, a policy.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(ctx context.Context) (policy.Actor, bool) {
	a, ok := ctx.Value(actorKey).(policy.Actor)
	return a, ok
}

// MustActor returns the actor or a zero Actor with an invalid role, which
// every policy rule denies.
func MustActor(ctx context.Context) policy.Actor {
	a, _ := ActorFromContext(ctx)
	return a
}
