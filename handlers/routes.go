package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every API route. Everything except the login flow and
// invite previews runs behind the auth middleware.
func NewRouter(authHandler *AuthHandler, boardHandler *BoardHandler, inviteHandler *InviteHandler, authMiddleware *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/magic-link", authHandler.HandleMagicLink).Methods("GET")
	r.HandleFunc("/api/invites/{token}", inviteHandler.PreviewInvite).Methods("GET")

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(authMiddleware.Auth)
	protected.HandleFunc("/auth/verify", authHandler.VerifyToken).Methods("GET")

	// Board routes
	protected.HandleFunc("/boards", boardHandler.ListBoards).Methods("GET")
	protected.HandleFunc("/boards", boardHandler.CreateBoard).Methods("POST")
	protected.HandleFunc("/boards/{boardID}", boardHandler.GetBoard).Methods("GET")
	protected.HandleFunc("/boards/{boardID}", boardHandler.DeleteBoard).Methods("DELETE")
	protected.HandleFunc("/boards/{boardID}/members", boardHandler.ListMembers).Methods("GET")
	protected.HandleFunc("/boards/{boardID}/members", boardHandler.AddMember).Methods("POST")
	protected.HandleFunc("/boards/{boardID}/members/{memberID}", boardHandler.UpdateMemberRole).Methods("PATCH")
	protected.HandleFunc("/boards/{boardID}/members/{memberID}", boardHandler.RemoveMember).Methods("DELETE")
	protected.HandleFunc("/boards/{boardID}/me/role", boardHandler.MyRole).Methods("GET")
	protected.HandleFunc("/boards/{boardID}/lists", boardHandler.CreateList).Methods("POST")
	protected.HandleFunc("/boards/{boardID}/archive", boardHandler.ArchiveBoard).Methods("POST")

	// Invite routes
	protected.HandleFunc("/boards/{boardID}/invites", inviteHandler.CreateInvite).Methods("POST")
	protected.HandleFunc("/boards/{boardID}/invites", inviteHandler.ListInvites).Methods("GET")
	protected.HandleFunc("/invites/accept", inviteHandler.AcceptInvite).Methods("POST")

	// WebSocket route for real-time updates
	protected.HandleFunc("/boards/{boardID}/ws", boardHandler.HandleWebSocket).Methods("GET")

	// List and card routes
	protected.HandleFunc("/lists/{listID}", boardHandler.DeleteList).Methods("DELETE")
	protected.HandleFunc("/lists/{listID}/cards", boardHandler.CreateCard).Methods("POST")
	protected.HandleFunc("/cards/{cardID}", boardHandler.UpdateCard).Methods("PATCH")
	protected.HandleFunc("/cards/{cardID}", boardHandler.DeleteCard).Methods("DELETE")
	protected.HandleFunc("/cards/{cardID}/move", boardHandler.MoveCard).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	return r
}
