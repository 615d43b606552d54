package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"tableside/internal/config"
)

const guestActor = "guest"

type AuthConfig struct {
	JWTSecret              string
	DevLogin               bool
	AllowLegacyActorHeader bool
	TokenTTL               time.Duration
	Log                    *zap.SugaredLogger
}

type Principal struct {
	ActorID     string
	Roles       []string
	Permissions []string
	Source      string
}

func (p Principal) guest() bool {
	return p.Source == guestActor
}

// ForbiddenError reports a missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

type principalKey struct{}

func (c AuthConfig) logger() *zap.SugaredLogger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop().Sugar()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// actorID names the caller in the event log. Guests act under their table.
func actorID(ctx context.Context, table string) string {
	p, ok := principalFromContext(ctx)
	if !ok || p.guest() {
		if table != "" {
			return "table:" + table
		}
		return guestActor
	}
	return p.ActorID
}

func requirePermission(ctx context.Context, rbac *config.Config, perm string) error {
	p, ok := principalFromContext(ctx)
	if !ok || p.guest() {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	for _, granted := range p.Permissions {
		if granted == "*" || granted == perm {
			return nil
		}
	}
	if rbac != nil && rbac.Allows(p.Roles, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{
		ActorID:     claims.Subject,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		Source:      "jwt",
	}, nil
}

// SignToken mints an HS256 token for actor with the given roles.
func SignToken(secret, actor string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// guestRoute reports whether a table guest may call the route without credentials.
func guestRoute(basePath, method, p string) bool {
	rel := strings.TrimPrefix(p, basePath)
	switch {
	case rel == "/health", rel == "/openapi.json", rel == "/auth/dev/login":
		return true
	case strings.HasPrefix(rel, "/menu") && method == http.MethodGet:
		return true
	case strings.HasPrefix(rel, "/tables/"):
		return true
	}
	return false
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			legacyActor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if legacyActor != "" && cfg.AllowLegacyActorHeader {
				cfg.logger().Warnw("legacy X-Actor-Id header accepted without auth", "actor_id", legacyActor)
				ctx := withPrincipal(req.Context(), Principal{
					ActorID: legacyActor,
					Roles:   strings.Fields(strings.ReplaceAll(req.Header.Get("X-Actor-Roles"), ",", " ")),
					Source:  "legacy_header",
				})
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}

			if guestRoute(basePath, req.Method, path.Clean(req.URL.Path)) {
				ctx := withPrincipal(req.Context(), Principal{ActorID: guestActor, Source: guestActor})
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
