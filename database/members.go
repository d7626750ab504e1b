package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/CrowderSoup/collab-board/board"
)

// AddMember is idempotent; re-adding a member leaves their role alone.
func (s *SQLStore) AddMember(ctx context.Context, boardID, userID string, role board.Role) error {
	_, err := s.exec(ctx, `
		INSERT INTO board_members (board_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (board_id, user_id) DO NOTHING`, boardID, userID, string(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert board member: %w", err)
	}
	return nil
}

func (s *SQLStore) MemberRole(ctx context.Context, boardID, userID string) (board.Role, error) {
	var role string
	err := s.queryRow(ctx, "SELECT role FROM board_members WHERE board_id = ? AND user_id = ?", boardID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query member role: %w", err)
	}
	return board.Role(role), nil
}

// Members lists the owner first, then everyone else by email.
func (s *SQLStore) Members(ctx context.Context, boardID string) ([]Member, error) {
	rows, err := s.query(ctx, `
		SELECT m.user_id, u.email, m.role, m.joined_at
		FROM board_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.board_id = ?
		ORDER BY CASE m.role WHEN 'OWNER' THEN 0 WHEN 'EDITOR' THEN 1 ELSE 2 END, u.email`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query board members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var (
			m      Member
			role   string
			joined sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.Email, &role, &joined); err != nil {
			return nil, fmt.Errorf("failed to scan board member: %w", err)
		}
		m.Role = board.Role(role)
		if joined.Valid {
			m.JoinedAt = joined.Time.UTC()
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLStore) SetMemberRole(ctx context.Context, boardID, userID string, role board.Role) error {
	res, err := s.exec(ctx, "UPDATE board_members SET role = ? WHERE board_id = ? AND user_id = ?", string(role), boardID, userID)
	return expectOneRow(res, err, "update board member")
}

func (s *SQLStore) RemoveMember(ctx context.Context, boardID, userID string) error {
	res, err := s.exec(ctx, "DELETE FROM board_members WHERE board_id = ? AND user_id = ?", boardID, userID)
	return expectOneRow(res, err, "delete board member")
}

const inviteColumns = "id, board_id, email, role, token_hash, status, expires_at, created_at, created_by, accepted_at, accepted_by"

func scanInvite(row rowScanner) (Invite, error) {
	var (
		inv        Invite
		role       string
		status     string
		acceptedAt sql.NullTime
		acceptedBy sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.BoardID, &inv.Email, &role, &inv.TokenHash, &status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.CreatedBy, &acceptedAt, &acceptedBy)
	if err != nil {
		return Invite{}, err
	}
	inv.Role = board.Role(role)
	inv.Status = InviteStatus(status)
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	if acceptedAt.Valid {
		t := acceptedAt.Time.UTC()
		inv.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		inv.AcceptedBy = &acceptedBy.String
	}
	return inv, nil
}

func (s *SQLStore) InsertInvite(ctx context.Context, inv Invite) error {
	_, err := s.exec(ctx, "INSERT INTO board_invites ("+inviteColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		inv.ID, inv.BoardID, inv.Email, string(inv.Role), inv.TokenHash, string(inv.Status),
		inv.ExpiresAt, inv.CreatedAt, inv.CreatedBy, nullTime(inv.AcceptedAt), nullString(inv.AcceptedBy))
	if err != nil {
		return fmt.Errorf("failed to insert invite: %w", err)
	}
	return nil
}

func (s *SQLStore) InviteByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	return s.oneInvite(s.queryRow(ctx, "SELECT "+inviteColumns+" FROM board_invites WHERE token_hash = ?", tokenHash))
}

func (s *SQLStore) PendingInvite(ctx context.Context, boardID, email string) (Invite, error) {
	return s.oneInvite(s.queryRow(ctx,
		"SELECT "+inviteColumns+" FROM board_invites WHERE board_id = ? AND email = ? AND status = ? ORDER BY created_at DESC LIMIT 1",
		boardID, email, string(InvitePending)))
}

func (s *SQLStore) oneInvite(row *sql.Row) (Invite, error) {
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return Invite{}, ErrNotFound
	}
	if err != nil {
		return Invite{}, fmt.Errorf("failed to query invite: %w", err)
	}
	return inv, nil
}

func (s *SQLStore) Invites(ctx context.Context, boardID string, status InviteStatus) ([]Invite, error) {
	rows, err := s.query(ctx,
		"SELECT "+inviteColumns+" FROM board_invites WHERE board_id = ? AND status = ? ORDER BY created_at DESC, id",
		boardID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query invites: %w", err)
	}
	defer rows.Close()

	invites := []Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

// UpdateInvite writes the status and acceptance fields of inv.
func (s *SQLStore) UpdateInvite(ctx context.Context, inv Invite) error {
	res, err := s.exec(ctx, "UPDATE board_invites SET status = ?, accepted_at = ?, accepted_by = ? WHERE id = ?",
		string(inv.Status), nullTime(inv.AcceptedAt), nullString(inv.AcceptedBy), inv.ID)
	return expectOneRow(res, err, "update invite")
}

func expectOneRow(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
