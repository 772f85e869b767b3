package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

// Platform roles. Every user has exactly one.
const (
	RolePatient  = "patient"
	RoleDoctor   = "doctor"
	RoleLab      = "lab"
	RoleChemist  = "chemist"
	RoleHospital = "hospital"
	RoleAdmin    = "admin"
)

var validRoles = map[string]bool{
	RolePatient: true, RoleDoctor: true, RoleLab: true,
	RoleChemist: true, RoleHospital: true, RoleAdmin: true,
}

// ValidRole reports whether r is a known platform role.
func ValidRole(r string) bool {
	return validRoles[r]
}

type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Phone string `json:"phone"`
}

type JWTConfig struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	Skipper    middleware.Skipper
}

// Issuer signs session tokens after a successful OTP verification.
type Issuer struct {
	cfg JWTConfig
	now func() time.Time
}

func NewIssuer(cfg JWTConfig) *Issuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "carelink"
	}
	return &Issuer{cfg: cfg, now: time.Now}
}

// Issue returns a signed HS256 token for the user and its expiry time.
func (i *Issuer) Issue(userID uuid.UUID, role, phone string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Role:  role,
		Phone: phone,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// JWTMiddleware validates the bearer token and places the user id and role on
// the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if _, err := uuid.Parse(claims.Subject); err != nil || !ValidRole(claims.Role) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), claims.Subject, claims.Role)))
			return next(c)
		}
	}
}

// DevAuthMiddleware is a permissive middleware for development. A bearer token
// is still validated when present; otherwise the X-Dev-User and X-Dev-Role
// headers pick the identity.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		validated := strict(next)
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" {
				return validated(c)
			}
			uid := c.Request().Header.Get("X-Dev-User")
			if _, err := uuid.Parse(uid); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "X-Dev-User must be a user uuid in development mode")
			}
			role := c.Request().Header.Get("X-Dev-Role")
			if !ValidRole(role) {
				role = RolePatient
			}
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), uid, role)))
			return next(c)
		}
	}
}

// WithUser returns a context carrying the authenticated identity.
func WithUser(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// UserUUID parses the authenticated user id. It returns uuid.Nil when the
// request is unauthenticated.
func UserUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// IsAdmin reports whether the authenticated user is an administrator.
func IsAdmin(ctx context.Context) bool {
	return RoleFromContext(ctx) == RoleAdmin
}
