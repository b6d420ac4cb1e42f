package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) MigrateUp(ctx context.Context) error {
	return s.exec(ctx, "migrations/postgres/create_tables.up.sql")
}

func (s *PostgresStore) MigrateDown(ctx context.Context) error {
	return s.exec(ctx, "migrations/postgres/create_tables.down.sql")
}

func (s *PostgresStore) exec(ctx context.Context, file string) error {
	sql, err := postgresMigrations.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

// Get one state blob
func (s *PostgresStore) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM user_state WHERE session_id = $1 AND key = $2`,
		scope, key,
	).Scan(&value)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query state %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

// Insert or replace one state blob
func (s *PostgresStore) Put(ctx context.Context, scope, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_state (session_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (session_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert state %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM user_state WHERE session_id = $1 AND key = $2`, scope, key,
	); err != nil {
		return fmt.Errorf("delete state %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
