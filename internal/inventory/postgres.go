package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores the catalogue in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initInventorySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

func initInventorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS medications (
			id BIGSERIAL PRIMARY KEY,
			code TEXT NULL,
			description TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			stock INTEGER NOT NULL CHECK (stock >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_medications_code ON medications (code) WHERE code IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_medications_description_fts ON medications USING GIN (to_tsvector('portuguese', description));`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init inventory schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (Item, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Item{}, ErrNotFound
	}
	var it Item
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(code, ''), description, price, stock FROM medications WHERE code=$1 LIMIT 1`,
		code,
	).Scan(&it.Code, &it.Description, &it.Price, &it.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("find medication by code: %w", err)
	}
	return it, nil
}

// SearchByText runs Portuguese full-text search ranked by ts_rank and falls
// back to a case-insensitive substring match when nothing ranks.
func (r *PostgresRepository) SearchByText(ctx context.Context, query string, limit int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	items, err := r.queryItems(ctx,
		`SELECT COALESCE(code, ''), description, price, stock FROM medications
		 WHERE to_tsvector('portuguese', description) @@ plainto_tsquery('portuguese', $1)
		 ORDER BY ts_rank(to_tsvector('portuguese', description), plainto_tsquery('portuguese', $1)) DESC, id
		 LIMIT $2`,
		query, limit,
	)
	if err != nil || len(items) > 0 {
		return items, err
	}

	return r.queryItems(ctx,
		`SELECT COALESCE(code, ''), description, price, stock FROM medications
		 WHERE description ILIKE '%' || $1 || '%' ESCAPE '\'
		 ORDER BY id
		 LIMIT $2`,
		escapeLike(query), limit,
	)
}

func (r *PostgresRepository) queryItems(ctx context.Context, sql string, args ...any) ([]Item, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search medications: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Code, &it.Description, &it.Price, &it.Stock); err != nil {
			return nil, fmt.Errorf("scan medication row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medication rows: %w", err)
	}
	return items, nil
}

// Replace clears the table and bulk-loads items in one transaction.
func (r *PostgresRepository) Replace(ctx context.Context, items []Item) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM medications`); err != nil {
		return fmt.Errorf("clear medications: %w", err)
	}

	rows := make([][]any, 0, len(items))
	for _, it := range items {
		var code any
		if c := strings.TrimSpace(it.Code); c != "" {
			code = c
		}
		rows = append(rows, []any{code, it.Description, it.Price, it.Stock})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"medications"},
		[]string{"code", "description", "price", "stock"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("copy medications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
