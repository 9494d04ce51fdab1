package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteSchema creates the table holding one document per portfolio key.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS portfolios (
	key TEXT PRIMARY KEY,
	document TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteRepository stores the portfolio document in a SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	key string
}

// NewSQLiteRepository prepares the schema and returns a repository for key.
func NewSQLiteRepository(db *sql.DB, key string) (*SQLiteRepository, error) {
	if _, err := db.Exec(SQLiteSchema); err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultPortfolioKey
	}
	return &SQLiteRepository{db: db, key: key}, nil
}

// Load fetches the document for the repository key.
func (r *SQLiteRepository) Load(ctx context.Context) (Portfolio, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM portfolios WHERE key = ?`, r.key).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Portfolio{}, ErrNotFound
		}
		return Portfolio{}, err
	}
	return Decode([]byte(doc))
}

// Save upserts the document for the repository key.
func (r *SQLiteRepository) Save(ctx context.Context, p Portfolio) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO portfolios (key, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		r.key, string(doc), time.Now().UTC(),
	)
	return err
}
