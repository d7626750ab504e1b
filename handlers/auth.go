package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/database"
	"github.com/CrowderSoup/collab-board/services"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	store       database.Store
}

func NewAuthHandler(authService *services.AuthService, store database.Store) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		store:       store,
	}
}

// baseURL is the scheme and host the request came in on, for links that
// point back at this server.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// Login handles the login request (sending a magic link)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, r, &services.ValidationError{Fields: map[string]string{"email": "must be a valid email address"}})
		return
	}

	magicLink, err := h.authService.GenerateMagicLink(email, baseURL(r))
	if err != nil {
		log.Printf("Error generating magic link: %v", err)
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"message":   "Magic link has been sent",
		"magicLink": magicLink, // For development only
	})
}

// HandleMagicLink exchanges a magic link token for a session token,
// registering the user on first login.
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, r, &services.ValidationError{Fields: map[string]string{"token": "is required"}})
		return
	}

	email, err := h.authService.VerifyMagicLinkToken(token)
	if err != nil {
		writeAPIError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "Invalid or expired token")
		return
	}

	user, err := h.store.EnsureUser(r.Context(), email)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to register user: %w", err))
		return
	}

	jwtToken, err := h.authService.CreateJWT(user.ID, user.Email)
	if err != nil {
		log.Printf("Error creating JWT: %v", err)
		writeError(w, r, err)
		return
	}

	log.Printf("User %s logged in", user.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"token":  jwtToken,
		"userId": user.ID,
		"email":  user.Email,
	})
}

// VerifyToken reports who the session token belongs to. It runs behind
// the auth middleware.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(r)
	if !ok {
		writeAPIError(w, r, http.StatusUnauthorized, api.CodeUnauthorized, "Missing session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userId": claims.UserID,
		"email":  claims.Email,
		"status": "valid",
	})
}
