package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the table holding one document per portfolio key.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS portfolios (
    key TEXT PRIMARY KEY,
    document JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresRepository persists the portfolio document in PostgreSQL.
type PostgresRepository struct {
	db  *pgxpool.Pool
	key string
}

// NewPostgresRepository constructs a Postgres-backed repository for key.
func NewPostgresRepository(db *pgxpool.Pool, key string) *PostgresRepository {
	if key == "" {
		key = DefaultPortfolioKey
	}
	return &PostgresRepository{db: db, key: key}
}

// EnsureSchema creates the portfolios table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("create portfolios table: %w", err)
	}
	return nil
}

// Load fetches the document for the repository key.
func (r *PostgresRepository) Load(ctx context.Context) (Portfolio, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM portfolios WHERE key = $1`, r.key).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	return Decode(doc)
}

// Save upserts the document inside a transaction.
func (r *PostgresRepository) Save(ctx context.Context, p Portfolio) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO portfolios (key, document, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`, r.key, string(doc)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
