// Package api holds the JSON request and error bodies exchanged between the
// board server and its clients.
package api

import (
	"time"

	"github.com/CrowderSoup/collab-board/board"
)

// Error codes carried in Error.Error and ConflictResponse.Code.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeMalformedJSON       = "MALFORMED_JSON"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInsufficientRole    = "INSUFFICIENT_ROLE"
	CodeOwnerRequired       = "OWNER_REQUIRED"
	CodeBoardNotFound       = "BOARD_NOT_FOUND"
	CodeListNotFound        = "LIST_NOT_FOUND"
	CodeCardNotFound        = "CARD_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeMemberNotFound      = "MEMBERSHIP_NOT_FOUND"
	CodeInviteNotFound      = "INVITE_NOT_FOUND"
	CodeInviteExpired       = "INVITE_EXPIRED"
	CodeInviteEmailMismatch = "INVITE_EMAIL_MISMATCH"
	CodeVersionConflict     = "CARD_VERSION_CONFLICT"
	CodeWIPLimit            = "WIP_LIMIT_REACHED"
	CodeArchiveDisabled     = "ARCHIVE_DISABLED"
	CodeInternal            = "INTERNAL_ERROR"
)

type CreateBoardRequest struct {
	Name string `json:"name"`
}

// AddMemberRequest grants an existing user access. Role defaults to
// EDITOR.
type AddMemberRequest struct {
	Email string     `json:"email"`
	Role  board.Role `json:"role,omitempty"`
}

type UpdateMemberRoleRequest struct {
	Role board.Role `json:"role"`
}

type RoleResponse struct {
	Role board.Role `json:"role"`
}

type CreateInviteRequest struct {
	Email string     `json:"email"`
	Role  board.Role `json:"role"`
}

// InviteResponse echoes a created invite. Link carries the raw token and
// is only ever shown to the owner who created it.
type InviteResponse struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"boardId"`
	Email     string     `json:"email"`
	Role      board.Role `json:"role"`
	Status    string     `json:"status"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	Link      string     `json:"link,omitempty"`
}

type InvitePreview struct {
	BoardID   string     `json:"boardId"`
	BoardName string     `json:"boardName"`
	Email     string     `json:"email"`
	Role      board.Role `json:"role"`
	Status    string     `json:"status"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type AcceptInviteRequest struct {
	Token string `json:"token"`
}

type AcceptInviteResponse struct {
	BoardID string     `json:"boardId"`
	Role    board.Role `json:"role"`
}

type CreateListRequest struct {
	Name     string `json:"name"`
	WIPLimit *int   `json:"wipLimit,omitempty"`
}

type CreateCardRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Priority       board.Priority `json:"priority,omitempty"`
	DueDate        *time.Time     `json:"dueDate,omitempty"`
	AssigneeUserID *string        `json:"assigneeUserId,omitempty"`
}

// UpdateCardRequest is a partial update guarded by the version the client
// last saw.
type UpdateCardRequest struct {
	ExpectedVersion int64 `json:"expectedVersion"`
	board.CardPatch
}

type MoveCardRequest struct {
	ToListID        string `json:"toListId"`
	ToPosition      int    `json:"toPosition"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

type DeleteCardRequest struct {
	ExpectedVersion int64 `json:"expectedVersion"`
}

// Error is the body of every non-conflict failure.
type Error struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	Path        string            `json:"path"`
	TS          time.Time         `json:"ts"`
	FieldErrors map[string]string `json:"fieldErrors"`
	Details     map[string]any    `json:"details"`
}

// ConflictResponse is the 409 body of a stale-version rejection. Latest is
// the card as the server currently holds it.
type ConflictResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Latest  *board.Card `json:"latest"`
}

type ArchiveResponse struct {
	Key string `json:"key"`
}
