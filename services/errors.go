package services

import (
	"fmt"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
)

// NotFoundError names the missing entity through its error code.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func boardNotFound(id string) error {
	return &NotFoundError{Code: api.CodeBoardNotFound, Message: fmt.Sprintf("Board %s not found", id)}
}

func listNotFound(id string) error {
	return &NotFoundError{Code: api.CodeListNotFound, Message: fmt.Sprintf("List %s not found", id)}
}

func cardNotFound(id string) error {
	return &NotFoundError{Code: api.CodeCardNotFound, Message: fmt.Sprintf("Card %s not found", id)}
}

func userNotFound(who string) error {
	return &NotFoundError{Code: api.CodeUserNotFound, Message: fmt.Sprintf("User %s not found", who)}
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConflictError is a stale expectedVersion. Latest is the stored card.
type ConflictError struct {
	Latest board.Card
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("card %s is at version %d", e.Latest.ID, e.Latest.Version)
}

type WIPLimitError struct {
	ListID string
	Limit  int
}

func (e *WIPLimitError) Error() string {
	return fmt.Sprintf("WIP limit reached (limit: %d)", e.Limit)
}

// ForbiddenError is an authenticated caller acting beyond their rights.
// An empty Code means plain FORBIDDEN.
type ForbiddenError struct {
	Code    string
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func notMember() error {
	return &ForbiddenError{Message: "You do not have access to this board"}
}

func insufficientRole() error {
	return &ForbiddenError{Code: api.CodeInsufficientRole, Message: "You do not have permission to modify this board"}
}

func ownerRequired() error {
	return &ForbiddenError{Code: api.CodeOwnerRequired, Message: "Only board owners can perform this action"}
}

func memberNotFound(userID string) error {
	return &NotFoundError{Code: api.CodeMemberNotFound, Message: fmt.Sprintf("User %s is not a member of this board", userID)}
}

// InviteExpiredError is an accept attempt after the invite's deadline.
type InviteExpiredError struct {
	InviteID string
}

func (e *InviteExpiredError) Error() string { return "Invite has expired" }

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// ErrArchiveDisabled is returned by ArchiveService when no bucket is
// configured.
var ErrArchiveDisabled = &NotFoundError{Code: api.CodeArchiveDisabled, Message: "Board archiving is not configured"}
