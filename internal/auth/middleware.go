package auth

import (
	"context"
	"net/http"
	"strings"
)

const sessionCookie = "session_token"

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// TokenFromRequest looks for a session token in the Authorization header
// (Bearer), the session cookie, or the "token" query parameter. The query
// form exists for the websocket handshake, where browsers cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	return r.URL.Query().Get("token")
}

// RequireUser rejects requests without a verifiable session token and stores
// the verified user id in the request context.
func RequireUser(m *JWTManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := m.VerifyToken(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// ContextWithUserID stores a verified user id, as RequireUser does.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user id stored by RequireUser, or "" if absent.
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
