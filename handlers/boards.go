package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/services"
)

// BoardHandler serves the board REST API and the per-board push
// subscription.
type BoardHandler struct {
	boards   *services.BoardService
	archive  *services.ArchiveService
	hub      *services.Hub
	upgrader websocket.Upgrader
}

func NewBoardHandler(boards *services.BoardService, archive *services.ArchiveService, hub *services.Hub) *BoardHandler {
	return &BoardHandler{
		boards:  boards,
		archive: archive,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Tokens, not cookies, authenticate the upgrade
			},
		},
	}
}

// user returns the caller's id. The auth middleware guarantees it is set.
func user(r *http.Request) string {
	claims, _ := currentUser(r)
	return claims.UserID
}

func requireVersion(w http.ResponseWriter, r *http.Request, v int64) bool {
	if v < 1 {
		writeError(w, r, &services.ValidationError{Fields: map[string]string{"expectedVersion": "is required"}})
		return false
	}
	return true
}

func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boards.ListBoards(r.Context(), user(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boards)
}

func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBoardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, err := h.boards.CreateBoard(r.Context(), user(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.boards.Snapshot(r.Context(), user(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.boards.DeleteBoard(r.Context(), user(r), mux.Vars(r)["boardID"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req api.AddMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.boards.AddMember(r.Context(), user(r), mux.Vars(r)["boardID"], req.Email, req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.boards.Members(r.Context(), user(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// MyRole reports the caller's role so clients can hide what they may not do.
func (h *BoardHandler) MyRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.boards.Role(r.Context(), user(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.RoleResponse{Role: role})
}

func (h *BoardHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateMemberRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	if err := h.boards.UpdateMemberRole(r.Context(), user(r), vars["boardID"], vars["memberID"], req.Role); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.boards.RemoveMember(r.Context(), user(r), vars["boardID"], vars["memberID"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req api.CreateListRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := h.boards.CreateList(r.Context(), user(r), mux.Vars(r)["boardID"], req.Name, req.WIPLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *BoardHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.boards.DeleteList(r.Context(), user(r), mux.Vars(r)["listID"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.boards.CreateCard(r.Context(), user(r), mux.Vars(r)["listID"], services.CardInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		AssigneeUserID: req.AssigneeUserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *BoardHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateCardRequest
	if !decodeBody(w, r, &req) || !requireVersion(w, r, req.ExpectedVersion) {
		return
	}
	c, err := h.boards.PatchCard(r.Context(), user(r), mux.Vars(r)["cardID"], req.ExpectedVersion, req.CardPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *BoardHandler) MoveCard(w http.ResponseWriter, r *http.Request) {
	var req api.MoveCardRequest
	if !decodeBody(w, r, &req) || !requireVersion(w, r, req.ExpectedVersion) {
		return
	}
	if req.ToListID == "" {
		writeError(w, r, &services.ValidationError{Fields: map[string]string{"toListId": "is required"}})
		return
	}
	c, err := h.boards.MoveCard(r.Context(), user(r), mux.Vars(r)["cardID"], req.ToListID, req.ToPosition, req.ExpectedVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *BoardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteCardRequest
	if !decodeBody(w, r, &req) || !requireVersion(w, r, req.ExpectedVersion) {
		return
	}
	if err := h.boards.DeleteCard(r.Context(), user(r), mux.Vars(r)["cardID"], req.ExpectedVersion); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BoardHandler) ArchiveBoard(w http.ResponseWriter, r *http.Request) {
	key, err := h.archive.ArchiveBoard(r.Context(), user(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.ArchiveResponse{Key: key})
}

// HandleWebSocket subscribes the caller to the board's push events.
func (h *BoardHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, boardID := user(r), mux.Vars(r)["boardID"]
	if err := h.boards.CheckAccess(r.Context(), userID, boardID); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := services.NewClient(h.hub, conn, userID, boardID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
