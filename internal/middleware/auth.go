// Package middleware provides authentication, logging, rate limiting,
// tracing and metrics middleware for the HTTP API.
package middleware

import (
	"errors"
	"fmt"
	"strings"

	"simplesns/internal/config"
	"simplesns/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fiber locals keys set by the auth middleware.
const (
	CallerLocalsKey = "caller"
	UserIDLocalsKey = "userID"
)

// DevCaller is injected for every request when AUTH_DISABLED is set.
var DevCaller = models.Caller{UserID: "test-user-1", IsAdmin: true, Nickname: "Test User"}

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
)

var groupClaims = []string{"groups", "cognito:groups", "roles"}
var nicknameClaims = []string{"nickname", "name", "preferred_username", "email"}

// Authenticator turns a bearer token into a models.Caller. It verifies
// HS256 tokens only; identity-provider key discovery is out of scope.
type Authenticator struct {
	secret     []byte
	issuer     string
	audience   string
	adminGroup string
	disabled   bool
}

// NewAuthenticator builds an Authenticator from configuration.
func NewAuthenticator(cfg *config.Config) *Authenticator {
	adminGroup := cfg.AdminGroup
	if adminGroup == "" {
		adminGroup = "Admins"
	}
	return &Authenticator{
		secret:     []byte(cfg.AuthSecret),
		issuer:     cfg.AuthIssuer,
		audience:   cfg.AuthAudience,
		adminGroup: adminGroup,
		disabled:   cfg.AuthDisabled,
	}
}

// Resolve verifies the Authorization header value and extracts the caller.
func (a *Authenticator) Resolve(authHeader string) (models.Caller, error) {
	if a.disabled {
		return DevCaller, nil
	}
	if authHeader == "" {
		return models.Caller{}, errMissingHeader
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Caller{}, errHeaderFormat
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Caller{}, fmt.Errorf("invalid or expired token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.Caller{}, errors.New("invalid token structure - missing subject")
	}

	caller := models.Caller{UserID: sub}
	for _, name := range groupClaims {
		if containsGroup(claims[name], a.adminGroup) {
			caller.IsAdmin = true
			break
		}
	}
	for _, name := range nicknameClaims {
		if v, ok := claims[name].(string); ok && v != "" {
			caller.Nickname = v
			break
		}
	}
	return caller, nil
}

// containsGroup accepts a JSON array claim or a comma/space separated string.
func containsGroup(claim interface{}, group string) bool {
	switch v := claim.(type) {
	case []interface{}:
		for _, g := range v {
			if s, ok := g.(string); ok && s == group {
				return true
			}
		}
	case []string:
		for _, g := range v {
			if g == group {
				return true
			}
		}
	case string:
		for _, g := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			if g == group {
				return true
			}
		}
	}
	return false
}

// Required rejects requests without a valid caller.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := a.Resolve(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
		}
		setCaller(c, caller)
		return c.Next()
	}
}

// Optional attaches a caller when a valid token is present and otherwise
// continues anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if caller, err := a.Resolve(c.Get(fiber.HeaderAuthorization)); err == nil {
			setCaller(c, caller)
		}
		return c.Next()
	}
}

func setCaller(c *fiber.Ctx, caller models.Caller) {
	c.Locals(CallerLocalsKey, caller)
	c.Locals(UserIDLocalsKey, caller.UserID)
	c.SetUserContext(WithUserID(c.UserContext(), caller.UserID))
}

// CallerFrom returns the caller attached by the auth middleware, or the
// anonymous zero value.
func CallerFrom(c *fiber.Ctx) models.Caller {
	if caller, ok := c.Locals(CallerLocalsKey).(models.Caller); ok {
		return caller
	}
	return models.Caller{}
}
