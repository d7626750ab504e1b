package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CrowderSoup/collab-board/api"
	"github.com/CrowderSoup/collab-board/board"
	"github.com/CrowderSoup/collab-board/database"
)

const inviteTTL = 7 * 24 * time.Hour

// InviteService lets board owners invite people by email. The raw token
// only travels in the invite link; the store keeps its SHA-256.
type InviteService struct {
	store database.Store
	smtp  SMTPConfig
	now   func() time.Time
}

func NewInviteService(store database.Store, smtp SMTPConfig) *InviteService {
	return &InviteService{
		store: store,
		smtp:  smtp,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

func inviteNotFound() error {
	return &NotFoundError{Code: api.CodeInviteNotFound, Message: "Invite is invalid or already used"}
}

func hashInviteToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateInvite issues an invite for email with role and returns it with
// the link to send. While an earlier invite to the same address is still
// pending it is returned instead, with no link.
func (s *InviteService) CreateInvite(ctx context.Context, userID, boardID, email string, role board.Role, baseURL string) (database.Invite, string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return database.Invite{}, "", invalid("email", "must be a valid email address")
	}
	if err := validateGrant(role); err != nil {
		return database.Invite{}, "", err
	}

	var (
		inv       database.Invite
		raw       string
		boardName string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		if err := authorize(ctx, tx, userID, boardID, requireOwner); err != nil {
			return err
		}
		existing, err := tx.PendingInvite(ctx, boardID, email)
		switch {
		case err == nil && !s.now().After(existing.ExpiresAt):
			inv = existing
			return nil
		case err == nil:
			existing.Status = database.InviteExpired
			if err := tx.UpdateInvite(ctx, existing); err != nil {
				return err
			}
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		if raw, err = newInviteToken(); err != nil {
			return err
		}
		now := s.now()
		inv = database.Invite{
			ID:        uuid.NewString(),
			BoardID:   boardID,
			Email:     email,
			Role:      role,
			TokenHash: hashInviteToken(raw),
			Status:    database.InvitePending,
			ExpiresAt: now.Add(inviteTTL),
			CreatedAt: now,
			CreatedBy: userID,
		}
		if err := tx.InsertInvite(ctx, inv); err != nil {
			return err
		}
		b, err := tx.Board(ctx, boardID)
		if err != nil {
			return err
		}
		boardName = b.Name
		return nil
	})
	if err != nil {
		return database.Invite{}, "", err
	}
	if raw == "" {
		return inv, "", nil
	}

	link := fmt.Sprintf("%s/api/invites/%s", baseURL, url.PathEscape(raw))
	if s.smtp.Host != "" {
		subject := fmt.Sprintf("You're invited to %s on Collab Board", boardName)
		body := fmt.Sprintf("You've been invited to the board %q as %s.\n\nOpen the link below, then accept the invite once you are signed in as %s:\n\n%s\n\nThe invite expires in 7 days.",
			boardName, strings.ToLower(string(role)), email, link)
		if err := sendMail(s.smtp, email, subject, body); err != nil {
			log.Printf("Warning: Failed to send invite email to %s for board %s: %v", email, boardID, err)
		}
	}
	log.Printf("Invite %s to board %s created by %s", inv.ID, boardID, userID)
	return inv, link, nil
}

// Invites lists a board's invites in the given status, PENDING when empty.
// Only the owner may look.
func (s *InviteService) Invites(ctx context.Context, userID, boardID string, status database.InviteStatus) ([]database.Invite, error) {
	switch status {
	case "":
		status = database.InvitePending
	case database.InvitePending, database.InviteAccepted, database.InviteExpired:
	default:
		return nil, invalid("status", "must be PENDING, ACCEPTED or EXPIRED")
	}
	if err := authorize(ctx, s.store, userID, boardID, requireOwner); err != nil {
		return nil, err
	}
	return s.store.Invites(ctx, boardID, status)
}

// Preview describes the invite behind a raw token without redeeming it. A
// pending invite past its deadline is marked expired on the way.
func (s *InviteService) Preview(ctx context.Context, rawToken string) (api.InvitePreview, error) {
	var preview api.InvitePreview
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		inv, err := tx.InviteByTokenHash(ctx, hashInviteToken(rawToken))
		if errors.Is(err, database.ErrNotFound) {
			return inviteNotFound()
		}
		if err != nil {
			return err
		}
		if inv.Status == database.InvitePending && s.now().After(inv.ExpiresAt) {
			inv.Status = database.InviteExpired
			if err := tx.UpdateInvite(ctx, inv); err != nil {
				return err
			}
		}

		name := "Unknown board"
		if b, err := tx.Board(ctx, inv.BoardID); err == nil {
			name = b.Name
		}
		preview = api.InvitePreview{
			BoardID:   inv.BoardID,
			BoardName: name,
			Email:     inv.Email,
			Role:      inv.Role,
			Status:    string(inv.Status),
			ExpiresAt: inv.ExpiresAt,
		}
		return nil
	})
	return preview, err
}

// Accept redeems a raw token for userID. The signed-in email must match the
// invited one. A user who is already a member keeps their role.
func (s *InviteService) Accept(ctx context.Context, userID, rawToken string) (database.Invite, error) {
	var (
		accepted database.Invite
		expired  string
	)
	err := s.store.WithTx(ctx, func(tx database.Store) error {
		inv, err := tx.InviteByTokenHash(ctx, hashInviteToken(rawToken))
		if errors.Is(err, database.ErrNotFound) || (err == nil && inv.Status != database.InvitePending) {
			return inviteNotFound()
		}
		if err != nil {
			return err
		}

		// The expiry is committed before the error goes back to the caller.
		if s.now().After(inv.ExpiresAt) {
			inv.Status = database.InviteExpired
			expired = inv.ID
			return tx.UpdateInvite(ctx, inv)
		}

		u, err := tx.UserByID(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return userNotFound(userID)
		}
		if err != nil {
			return err
		}
		if normalizeEmail(u.Email) != inv.Email {
			return &ForbiddenError{Code: api.CodeInviteEmailMismatch, Message: "This invite wasn't sent to your account"}
		}

		if err := tx.AddMember(ctx, inv.BoardID, userID, inv.Role); err != nil {
			return err
		}
		now := s.now()
		inv.Status = database.InviteAccepted
		inv.AcceptedAt = &now
		inv.AcceptedBy = &userID
		if err := tx.UpdateInvite(ctx, inv); err != nil {
			return err
		}
		accepted = inv
		return nil
	})
	if err != nil {
		return database.Invite{}, err
	}
	if expired != "" {
		return database.Invite{}, &InviteExpiredError{InviteID: expired}
	}
	log.Printf("Invite %s accepted by %s", accepted.ID, userID)
	return accepted, nil
}
