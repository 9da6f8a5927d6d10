package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// PgxDeviceTokenRepository implements domain.DeviceTokenRepository using pgxpool.
type PgxDeviceTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPgxDeviceTokenRepository creates a new PgxDeviceTokenRepository.
func NewPgxDeviceTokenRepository(pool *pgxpool.Pool) *PgxDeviceTokenRepository {
	return &PgxDeviceTokenRepository{pool: pool}
}

var _ domain.DeviceTokenRepository = (*PgxDeviceTokenRepository)(nil)

// Upsert stores the token for the user, moving it if another user held it.
func (r *PgxDeviceTokenRepository) Upsert(ctx context.Context, t domain.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (token, user_id, device_info)
		VALUES ($1, $2, $3)
		ON CONFLICT (token)
		DO UPDATE SET user_id = EXCLUDED.user_id,
		              device_info = EXCLUDED.device_info,
		              updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.pool.Exec(ctx, query, t.Token, t.UserID, t.DeviceInfo)
	return err
}

// ListByUser returns every token registered for the user, newest first.
func (r *PgxDeviceTokenRepository) ListByUser(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	query := `
		SELECT token, user_id, device_info, created_at, updated_at
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeviceToken
	for rows.Next() {
		var t domain.DeviceToken
		if err := rows.Scan(&t.Token, &t.UserID, &t.DeviceInfo, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

// Delete removes a token.
func (r *PgxDeviceTokenRepository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM device_tokens WHERE token = $1`
	_, err := r.pool.Exec(ctx, query, token)
	return err
}
