package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists dialogue state in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dialogue_sessions (
			id TEXT PRIMARY KEY,
			last_medication TEXT NOT NULL DEFAULT '',
			step TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	if err := validID(id); err != nil {
		return Session{}, err
	}
	out := Session{ID: id}
	var step string
	err := s.pool.QueryRow(ctx,
		`SELECT last_medication, step, updated_at FROM dialogue_sessions WHERE id=$1`,
		id,
	).Scan(&out.LastMedication, &step, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Default(id), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	out.Step = Step(step)
	return out, nil
}

// Set merges patch in a single upsert; NULL parameters keep the stored column.
func (s *PostgresStore) Set(ctx context.Context, id string, patch Patch) (Session, error) {
	if err := validID(id); err != nil {
		return Session{}, err
	}
	var stepArg *string
	if patch.Step != nil {
		v := string(*patch.Step)
		stepArg = &v
	}

	out := Session{ID: id}
	var step string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO dialogue_sessions (id, last_medication, step, updated_at)
		 VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), now())
		 ON CONFLICT (id) DO UPDATE SET
			last_medication = COALESCE($2, dialogue_sessions.last_medication),
			step = COALESCE($3, dialogue_sessions.step),
			updated_at = now()
		 RETURNING last_medication, step, updated_at`,
		id,
		patch.LastMedication,
		stepArg,
	).Scan(&out.LastMedication, &step, &out.UpdatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("set session: %w", err)
	}
	out.Step = Step(step)
	return out, nil
}

func (s *PostgresStore) Clear(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM dialogue_sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
