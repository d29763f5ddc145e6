package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sepetli/kimlik/tokens"
)

// TokenVerifier validates a presented bearer token, the api layer only
// cares about access tokens
type TokenVerifier interface {
	Verify(ctx context.Context, raw string, expected tokens.TokenType) (*tokens.Claims, error)
}

var (
	ErrNoToken                    = errors.New("no bearer token found")
	ErrInvalidAuthorizationResult = errors.New("invalid authorization result")
)

// Authenticator guards a route group with a verified access token.
// On top of the signature check the verifier rejects refresh tokens
// presented as access tokens and anything on the blacklist.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := jwtauth.TokenFromHeader(r)
			if raw == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(r.Context(), raw, tokens.AccessTokenType)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			ctx = context.WithValue(ctx, RawTokenContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey struct {
	name string
}

var (
	ClaimsContextKey   = &contextKey{"Claims"}
	RawTokenContextKey = &contextKey{"RawToken"}
)

// ClaimsFromContext returns the verified access token claims put there
// by the Authenticator middleware
func ClaimsFromContext(ctx context.Context) (*tokens.Claims, error) {
	claims, ok := ctx.Value(ClaimsContextKey).(*tokens.Claims)
	if !ok {
		return nil, ErrInvalidAuthorizationResult
	}
	return claims, nil
}

// RawTokenFromContext returns the raw bearer token as presented, the
// logout endpoint needs it to blacklist the token
func RawTokenFromContext(ctx context.Context) (string, error) {
	raw, ok := ctx.Value(RawTokenContextKey).(string)
	if !ok {
		return "", ErrInvalidAuthorizationResult
	}
	return raw, nil
}
