package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/user-accounts/internal/apperror"
	"github.com/sakif/user-accounts/internal/model"
)

// HeaderName carries the raw token. There is no "Bearer " prefix: the whole
// header value is compared with the stored token.
const HeaderName = "Authorization"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// only THIS package can read or write the username value, so no other
// package can shadow it by accident.
type contextKey string

const usernameKey contextKey = "username"

// TokenLookup resolves a session token to its user.
// It must return an error wrapping apperror.ErrNotFound when no user holds
// the token. The repositories implement it directly.
type TokenLookup interface {
	GetByToken(ctx context.Context, token string) (*model.User, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the token from the Authorization header, finds the user whose
// stored token equals it and stores that user's username in the request
// context. A missing header or unknown token answers 401 and stops the chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1.
//
// The gate keeps no state of its own; every request is one store lookup.
func RequireAuth(users TokenLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderName)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			user, err := users.GetByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					writeUnauthorized(w)
					return
				}
				// The store failed; that is our problem, not a bad token.
				logger.Error("auth: token lookup failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "An internal error occurred")
				return
			}

			ctx := WithUsername(r.Context(), user.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUsername returns a copy of ctx carrying the authenticated username.
// RequireAuth uses it; tests use it to call handlers directly.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext retrieves the authenticated username from the request context.
//
// Returns ("", false) if the request did not pass through RequireAuth.
//
// Usage in handlers:
//
//	username, ok := auth.UsernameFromContext(r.Context())
//	if !ok {
//	    // not authenticated
//	}
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok && username != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
}

// writeAuthError emits the same {"errors": "..."} shape the handlers use.
// It lives here because handler imports auth, not the other way round.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"errors": message})
}
