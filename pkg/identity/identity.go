// Package identity resolves the caller of a request. Tokens are issued by the
// identity service; this package only verifies them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IlyushaZ/rental-store/pkg/model"
	"github.com/golang-jwt/jwt/v5"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey struct{}

func WithCaller(ctx context.Context, c model.Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFrom(ctx context.Context) (model.Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(model.Caller)
	return c, ok
}

// Authenticator puts the caller into the request context.
// With Secret set the caller comes from an HS256 bearer token (claims sub and role).
// Without it the X-User-ID and X-User-Role headers set by the gateway are trusted.
type Authenticator struct {
	Secret string
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.resolve(r)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			next.ServeHTTP(w, r)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (model.Caller, error) {
	if a.Secret == "" {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			return model.Caller{}, ErrUnauthenticated
		}
		return newCaller(id, r.Header.Get(HeaderUserRole))
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return model.Caller{}, ErrUnauthenticated
	}

	return ParseToken(auth, a.Secret)
}

// ParseToken verifies a "Bearer <jwt>" value and extracts the caller from its claims.
func ParseToken(authHeader, secret string) (model.Caller, error) {
	tokenStr := strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
		tokenStr = strings.TrimSpace(tokenStr[7:])
	}
	if tokenStr == "" {
		return model.Caller{}, errors.New("missing token")
	}

	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Caller{}, fmt.Errorf("invalid token: %w", err)
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Caller{}, errors.New("invalid claims")
	}

	var sub string
	switch v := mc["sub"].(type) {
	case string:
		sub = v
	case float64:
		sub = strconv.FormatInt(int64(v), 10)
	}

	role, _ := mc["role"].(string)
	return newCaller(sub, role)
}

// Issue signs a token the way the identity service does. It is meant for tests and local tooling.
func Issue(secret string, c model.Caller, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  c.ID,
		"role": string(c.Role),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func newCaller(id, role string) (model.Caller, error) {
	if id == "" {
		return model.Caller{}, errors.New("token has no subject")
	}

	r := model.Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case "":
		r = model.RoleCustomer
	case model.RoleCustomer, model.RoleSeller, model.RoleAdmin, model.RoleDelivery:
	default:
		return model.Caller{}, fmt.Errorf("unknown role %q", role)
	}

	return model.Caller{ID: id, Role: r}, nil
}
