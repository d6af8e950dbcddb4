package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

// SnapshotRepository stores collection documents in the state_snapshots
// table. It satisfies snapshot.Backend.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Read returns the stored document for collection.
func (r *SnapshotRepository) Read(ctx context.Context, collection string) ([]byte, error) {
	var body []byte
	row := r.pool.QueryRow(ctx, `SELECT body FROM state_snapshots WHERE collection=$1`, collection)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("select snapshot %s: %w", collection, err)
	}
	return body, nil
}

// Write upserts the document for collection in a single statement, so a
// failed write leaves the previous row intact.
func (r *SnapshotRepository) Write(ctx context.Context, collection string, data []byte) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO state_snapshots (collection, body, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, collection, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", collection, err)
	}
	return nil
}

var _ snapshot.Backend = (*SnapshotRepository)(nil)
