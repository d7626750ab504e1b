package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/database"
	"github.com/CrowderSoup/collab-board/services"
)

// InviteHandler serves board invites: owners create and list them, the
// invitee previews and accepts.
type InviteHandler struct {
	invites *services.InviteService
}

func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

func inviteResponse(inv database.Invite, link string) api.InviteResponse {
	return api.InviteResponse{
		ID:        inv.ID,
		BoardID:   inv.BoardID,
		Email:     inv.Email,
		Role:      inv.Role,
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
		Link:      link,
	}
}

func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req api.CreateInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inv, link, err := h.invites.CreateInvite(r.Context(), user(r), mux.Vars(r)["boardID"], req.Email, req.Role, baseURL(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inviteResponse(inv, link))
}

func (h *InviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	status := database.InviteStatus(r.URL.Query().Get("status"))
	invites, err := h.invites.Invites(r.Context(), user(r), mux.Vars(r)["boardID"], status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]api.InviteResponse, len(invites))
	for i, inv := range invites {
		out[i] = inviteResponse(inv, "")
	}
	writeJSON(w, http.StatusOK, out)
}

// PreviewInvite needs no session: the token itself is the credential.
func (h *InviteHandler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	preview, err := h.invites.Preview(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *InviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req api.AcceptInviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, r, &services.ValidationError{Fields: map[string]string{"token": "is required"}})
		return
	}
	inv, err := h.invites.Accept(r.Context(), user(r), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AcceptInviteResponse{BoardID: inv.BoardID, Role: inv.Role})
}
