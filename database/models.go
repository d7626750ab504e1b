package database

import (
	"context"
	"errors"
	"time"

	"github.com/CrowderSoup/collab-board/board"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is one user's membership of a board.
type Member struct {
	UserID   string     `json:"userId"`
	Email    string     `json:"email"`
	Role     board.Role `json:"role"`
	JoinedAt time.Time  `json:"joinedAt,omitzero"`
}

type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteExpired  InviteStatus = "EXPIRED"
)

// Invite grants Role on a board to whoever signs in as Email and presents
// the token hashed into TokenHash.
type Invite struct {
	ID         string       `json:"id"`
	BoardID    string       `json:"boardId"`
	Email      string       `json:"email"`
	Role       board.Role   `json:"role"`
	TokenHash  string       `json:"-"`
	Status     InviteStatus `json:"status"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	CreatedAt  time.Time    `json:"createdAt"`
	CreatedBy  string       `json:"createdBy"`
	AcceptedAt *time.Time   `json:"acceptedAt,omitempty"`
	AcceptedBy *string      `json:"acceptedBy,omitempty"`
}

// Store persists users, boards, lists and cards. Lists and cards come back
// ordered by position.
type Store interface {
	EnsureUser(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)

	CreateBoard(ctx context.Context, b board.Board, ownerID string) error
	Board(ctx context.Context, id string) (board.Board, error)
	BoardsForUser(ctx context.Context, userID string) ([]board.Board, error)
	DeleteBoard(ctx context.Context, id string) error
	// AddMember grants role to a user; an existing membership is kept as is.
	AddMember(ctx context.Context, boardID, userID string, role board.Role) error
	IsMember(ctx context.Context, boardID, userID string) (bool, error)
	// MemberRole returns ErrNotFound when userID is not a member.
	MemberRole(ctx context.Context, boardID, userID string) (board.Role, error)
	Members(ctx context.Context, boardID string) ([]Member, error)
	SetMemberRole(ctx context.Context, boardID, userID string, role board.Role) error
	RemoveMember(ctx context.Context, boardID, userID string) error

	InsertInvite(ctx context.Context, inv Invite) error
	InviteByTokenHash(ctx context.Context, tokenHash string) (Invite, error)
	PendingInvite(ctx context.Context, boardID, email string) (Invite, error)
	// Invites lists a board's invites with the given status, newest first.
	Invites(ctx context.Context, boardID string, status InviteStatus) ([]Invite, error)
	UpdateInvite(ctx context.Context, inv Invite) error

	Lists(ctx context.Context, boardID string) ([]board.List, error)
	List(ctx context.Context, id string) (board.List, error)
	InsertList(ctx context.Context, l board.List) error
	DeleteList(ctx context.Context, id string) error
	SetListPositions(ctx context.Context, lists []board.List) error

	Cards(ctx context.Context, listID string) ([]board.Card, error)
	Card(ctx context.Context, id string) (board.Card, error)
	InsertCard(ctx context.Context, c board.Card) error
	UpdateCard(ctx context.Context, c board.Card) error
	DeleteCard(ctx context.Context, id string) error
	// SetCardPositions writes list id and position of every given card.
	SetCardPositions(ctx context.Context, cards []board.Card) error

	// WithTx runs fn against a store bound to one transaction, committing
	// if fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error
}
