package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPersister keeps the blob as one row of the progress_blobs table.
type PostgresPersister struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresPersister creates a PostgreSQL-backed persister. The table is
// created by database.Migrate. An empty key uses DefaultKey.
func NewPostgresPersister(pool *pgxpool.Pool, key string) (*PostgresPersister, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if key == "" {
		key = DefaultKey
	}
	return &PostgresPersister{pool: pool, key: key}, nil
}

func (p *PostgresPersister) Load(ctx context.Context) ([]byte, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM progress_blobs WHERE key = $1`,
		p.key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return []byte(value), nil
}

func (p *PostgresPersister) Save(ctx context.Context, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO progress_blobs (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		p.key,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
