package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// PgxLocalStorage implements domain.LocalStorage using pgxpool.
type PgxLocalStorage struct {
	pool *pgxpool.Pool
}

// NewPgxLocalStorage creates a new PgxLocalStorage.
func NewPgxLocalStorage(pool *pgxpool.Pool) *PgxLocalStorage {
	return &PgxLocalStorage{pool: pool}
}

var _ domain.LocalStorage = (*PgxLocalStorage)(nil)

// GetItem returns ("", false, nil) when the key is absent.
func (r *PgxLocalStorage) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	query := `SELECT value FROM console_local_storage WHERE scope = $1 AND key = $2`

	var value string
	err := r.pool.QueryRow(ctx, query, scope, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}

	return value, true, nil
}

// SetItem upserts value under (scope, key).
func (r *PgxLocalStorage) SetItem(ctx context.Context, scope, key, value string) error {
	query := `
		INSERT INTO console_local_storage (scope, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.pool.Exec(ctx, query, scope, key, value)
	return err
}

// RemoveItem deletes (scope, key). Missing rows are not an error.
func (r *PgxLocalStorage) RemoveItem(ctx context.Context, scope, key string) error {
	query := `DELETE FROM console_local_storage WHERE scope = $1 AND key = $2`
	_, err := r.pool.Exec(ctx, query, scope, key)
	return err
}
