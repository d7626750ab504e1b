package client

import (
	"errors"
	"fmt"

	"github.com/CrowderSoup/collab-board/board"
)

// Kind discriminates the failures a board API call can end with.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransport: the request never produced an HTTP response.
	KindTransport
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	// KindConflict: the expected version was stale. Latest is set.
	KindConflict
	// KindWIPLimit: the destination list is full. Limit is set.
	KindWIPLimit
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindWIPLimit:
		return "wip_limit"
	}
	return "unknown"
}

// Error is returned by every Client method that fails. Only the fields
// belonging to Kind are populated.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string

	FieldErrors map[string]string
	Latest      *board.Card
	Limit       int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("board api %s: %v", e.Kind, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("board api %s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("board api %s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err means the session token is no longer
// accepted.
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// AsConflict returns the authoritative card carried by a version conflict.
func AsConflict(err error) (*board.Card, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindConflict && apiErr.Latest != nil {
		return apiErr.Latest, true
	}
	return nil, false
}
