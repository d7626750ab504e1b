package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CrowderSoup/collab-board/board"
)

const listColumns = "id, board_id, name, position, wip_limit"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanList(row rowScanner) (board.List, error) {
	var (
		l   board.List
		wip sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.BoardID, &l.Name, &l.Position, &wip); err != nil {
		return board.List{}, err
	}
	if wip.Valid {
		v := int(wip.Int64)
		l.WIPLimit = &v
	}
	return l, nil
}

func (s *SQLStore) Lists(ctx context.Context, boardID string) ([]board.List, error) {
	rows, err := s.query(ctx, "SELECT "+listColumns+" FROM lists WHERE board_id = ? ORDER BY position, id", boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	lists := []board.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

func (s *SQLStore) List(ctx context.Context, id string) (board.List, error) {
	l, err := scanList(s.queryRow(ctx, "SELECT "+listColumns+" FROM lists WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return board.List{}, ErrNotFound
	}
	if err != nil {
		return board.List{}, fmt.Errorf("failed to query list: %w", err)
	}
	return l, nil
}

func (s *SQLStore) InsertList(ctx context.Context, l board.List) error {
	var wip sql.NullInt64
	if l.WIPLimit != nil {
		wip = sql.NullInt64{Int64: int64(*l.WIPLimit), Valid: true}
	}
	_, err := s.exec(ctx, "INSERT INTO lists ("+listColumns+") VALUES (?, ?, ?, ?, ?)",
		l.ID, l.BoardID, l.Name, l.Position, wip)
	if err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}
	return nil
}

// DeleteList removes the list; its cards go with it.
func (s *SQLStore) DeleteList(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "DELETE FROM lists WHERE id = ?", id)
}

func (s *SQLStore) SetListPositions(ctx context.Context, lists []board.List) error {
	for _, l := range lists {
		if _, err := s.exec(ctx, "UPDATE lists SET position = ? WHERE id = ?", l.Position, l.ID); err != nil {
			return fmt.Errorf("failed to update list position: %w", err)
		}
	}
	return nil
}

const cardColumns = "id, list_id, title, description, position, version, updated_at, priority, due_date, created_by, assignee_user_id"

func scanCard(row rowScanner) (board.Card, error) {
	var (
		c        board.Card
		priority string
		due      sql.NullTime
		assignee sql.NullString
	)
	err := row.Scan(&c.ID, &c.ListID, &c.Title, &c.Description, &c.Position, &c.Version,
		&c.UpdatedAt, &priority, &due, &c.CreatedByUserID, &assignee)
	if err != nil {
		return board.Card{}, err
	}
	c.Priority = board.Priority(priority)
	c.UpdatedAt = c.UpdatedAt.UTC()
	if due.Valid {
		t := due.Time.UTC()
		c.DueDate = &t
	}
	if assignee.Valid {
		a := assignee.String
		c.AssigneeUserID = &a
	}
	return c, nil
}

func cardArgs(c board.Card) (sql.NullTime, sql.NullString) {
	var (
		due      sql.NullTime
		assignee sql.NullString
	)
	if c.DueDate != nil {
		due = sql.NullTime{Time: c.DueDate.UTC(), Valid: true}
	}
	if c.AssigneeUserID != nil {
		assignee = sql.NullString{String: *c.AssigneeUserID, Valid: true}
	}
	return due, assignee
}

func (s *SQLStore) Cards(ctx context.Context, listID string) ([]board.Card, error) {
	rows, err := s.query(ctx, "SELECT "+cardColumns+" FROM cards WHERE list_id = ? ORDER BY position, id", listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	cards := []board.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *SQLStore) Card(ctx context.Context, id string) (board.Card, error) {
	c, err := scanCard(s.queryRow(ctx, "SELECT "+cardColumns+" FROM cards WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return board.Card{}, ErrNotFound
	}
	if err != nil {
		return board.Card{}, fmt.Errorf("failed to query card: %w", err)
	}
	return c, nil
}

func (s *SQLStore) InsertCard(ctx context.Context, c board.Card) error {
	due, assignee := cardArgs(c)
	_, err := s.exec(ctx, "INSERT INTO cards ("+cardColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.ListID, c.Title, c.Description, c.Position, c.Version,
		c.UpdatedAt.UTC(), string(c.Priority), due, c.CreatedByUserID, assignee)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

// UpdateCard overwrites every mutable column of the card.
func (s *SQLStore) UpdateCard(ctx context.Context, c board.Card) error {
	due, assignee := cardArgs(c)
	res, err := s.exec(ctx, `
		UPDATE cards SET
			list_id = ?, title = ?, description = ?, position = ?, version = ?,
			updated_at = ?, priority = ?, due_date = ?, assignee_user_id = ?
		WHERE id = ?`,
		c.ListID, c.Title, c.Description, c.Position, c.Version,
		c.UpdatedAt.UTC(), string(c.Priority), due, assignee, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteCard(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "DELETE FROM cards WHERE id = ?", id)
}

func (s *SQLStore) SetCardPositions(ctx context.Context, cards []board.Card) error {
	for _, c := range cards {
		if _, err := s.exec(ctx, "UPDATE cards SET list_id = ?, position = ? WHERE id = ?", c.ListID, c.Position, c.ID); err != nil {
			return fmt.Errorf("failed to update card position: %w", err)
		}
	}
	return nil
}
