package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/praisepoints/internal/auth"
)

// TokenParser turns a bearer token into the caller it identifies.
type TokenParser interface {
	Parse(token string) (auth.Caller, error)
}

// Authenticate validates the bearer token and stores the Caller in the
// request context. Websocket upgrades may pass the token as ?token= since
// browsers cannot set headers on them.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			caller, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			ctx := auth.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects callers that are not signed in as a parent.
func RequireParent(next http.Handler) http.Handler {
	return requireRole(auth.RoleParent, next)
}

// RequireChild rejects callers that are not signed in as a child.
func RequireChild(next http.Handler) http.Handler {
	return requireRole(auth.RoleChild, next)
}

func requireRole(role auth.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context())
		if !ok || c.Role != role {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "error": msg})
}
