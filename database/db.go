package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/CrowderSoup/collab-board/board"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Dialect selects the SQL flavour and the migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Migrate brings the schema of db up to date.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	dir := "migrations/sqlite"
	if dialect == Postgres {
		dir = "migrations/postgres"
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// InitDB opens (creating if needed) the sqlite database at path and
// migrates it.
func InitDB(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; a transaction holds the only connection.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, SQLite); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Database initialized successfully")
	return NewSQLStore(db, SQLite), nil
}

type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over database/sql for both sqlite and
// postgres. Queries are written with ? placeholders and rebound for
// postgres.
type SQLStore struct {
	db      *sql.DB
	conn    conn
	dialect Dialect
	inTx    bool
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, conn: db, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, conn: tx, dialect: s.dialect, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.rebind(query), args...)
}

// EnsureUser returns the user with the given email, creating it on first
// sight.
func (s *SQLStore) EnsureUser(ctx context.Context, email string) (User, error) {
	u, err := s.UserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	u = User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	_, err = s.exec(ctx, "INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)", u.ID, u.Email, u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.queryRow(ctx, "SELECT id, email, created_at FROM users WHERE id = ?", id))
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.queryRow(ctx, "SELECT id, email, created_at FROM users WHERE email = ?", email))
}

func (s *SQLStore) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// CreateBoard stores the board and makes ownerID its owner.
func (s *SQLStore) CreateBoard(ctx context.Context, b board.Board, ownerID string) error {
	return s.WithTx(ctx, func(tx Store) error {
		ts := tx.(*SQLStore)
		_, err := ts.exec(ctx, "INSERT INTO boards (id, name, created_by, created_at) VALUES (?, ?, ?, ?)",
			b.ID, b.Name, ownerID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert board: %w", err)
		}
		return ts.AddMember(ctx, b.ID, ownerID, board.RoleOwner)
	})
}

func (s *SQLStore) Board(ctx context.Context, id string) (board.Board, error) {
	var b board.Board
	err := s.queryRow(ctx, "SELECT id, name FROM boards WHERE id = ?", id).Scan(&b.ID, &b.Name)
	if err == sql.ErrNoRows {
		return board.Board{}, ErrNotFound
	}
	if err != nil {
		return board.Board{}, fmt.Errorf("failed to query board: %w", err)
	}
	return b, nil
}

func (s *SQLStore) BoardsForUser(ctx context.Context, userID string) ([]board.Board, error) {
	rows, err := s.query(ctx, `
		SELECT b.id, b.name
		FROM boards b
		JOIN board_members m ON m.board_id = b.id
		WHERE m.user_id = ?
		ORDER BY b.created_at, b.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boards: %w", err)
	}
	defer rows.Close()

	boards := []board.Board{}
	for rows.Next() {
		var b board.Board
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

func (s *SQLStore) DeleteBoard(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "DELETE FROM boards WHERE id = ?", id)
}

func (s *SQLStore) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM board_members WHERE board_id = ? AND user_id = ?", boardID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query board member: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) deleteByID(ctx context.Context, query, id string) error {
	res, err := s.exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
