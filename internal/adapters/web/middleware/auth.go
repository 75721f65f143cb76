package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// AuthCookie carries the identity token for browser sessions.
const AuthCookie = "auth_token"

// AuthMiddleware ensures the request carries a valid identity token and
// stores the verified user in the request context.
func AuthMiddleware(verifier ports.IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				// Clear cookie if invalid
				http.SetCookie(w, &http.Cookie{
					Name:   AuthCookie,
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
				slog.Debug("identity token rejected", "path", r.URL.Path, "error", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.WithActor(r.Context(), user)))
		})
	}
}

// tokenFromRequest reads the cookie first, then the Authorization header.
// Browsers cannot set headers on WebSocket handshakes, so upgrades may also
// pass the token as a query parameter.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AuthCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

// RoleMiddleware checks if the user has the required role.
func RoleMiddleware(requiredRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := domain.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !hasPermission(user.Role, requiredRole) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasPermission(userRole, requiredRole domain.Role) bool {
	switch userRole {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return requiredRole == domain.RoleUser
	}
	return false
}
