package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/services"
)

type contextKey string

const userContextKey contextKey = "user"

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth requires a session token, either as a Bearer Authorization header
// or, for websocket upgrades from browsers, as the access_token query
// parameter.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "Missing or malformed authorization")
			return
		}

		claims, err := m.authService.VerifyJWT(tokenString)
		if err != nil {
			writeAPIError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("access_token")
		return token, token != ""
	}

	authParts := strings.Split(authHeader, " ")
	if len(authParts) != 2 || authParts[0] != "Bearer" || authParts[1] == "" {
		return "", false
	}
	return authParts[1], true
}

// currentUser returns the claims the middleware stored for the request.
func currentUser(r *http.Request) (services.Claims, bool) {
	claims, ok := r.Context().Value(userContextKey).(services.Claims)
	return claims, ok
}
