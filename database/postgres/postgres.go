// Package postgres runs the board store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/CrowderSoup/collab-board/database"
)

// Store is the shared SQL store bound to a pgx pool.
type Store struct {
	*database.SQLStore
	pool *pgxpool.Pool
}

// New connects to the database at connStr and migrates it.
func New(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := database.Migrate(ctx, db, database.Postgres); err != nil {
		db.Close()
		pool.Close()
		return nil, err
	}

	log.Println("Postgres database initialized successfully")
	return &Store{SQLStore: database.NewSQLStore(db, database.Postgres), pool: pool}, nil
}

// Stat reports pool usage.
func (s *Store) Stat() *pgxpool.Stat { return s.pool.Stat() }

func (s *Store) Close() error {
	err := s.SQLStore.Close()
	s.pool.Close()
	return err
}
