package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/database"
	"github.com/jackc/pgx/v5"
)

// SessionRepository stores session key/value items in PostgreSQL. Every write
// extends the lifetime of all items of the session.
type SessionRepository struct {
	db  *database.DB
	ttl time.Duration
}

func NewSessionRepository(db *database.DB, ttl time.Duration) *SessionRepository {
	return &SessionRepository{db: db, ttl: ttl}
}

func (r *SessionRepository) GetItem(ctx context.Context, sessionID, key string) (string, bool, error) {
	query := `
		SELECT item_value FROM session_items
		WHERE session_id = $1 AND item_key = $2 AND expires_at > NOW()
	`

	var value string
	err := r.db.Pool.QueryRow(ctx, query, sessionID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session item: %w", database.MapPostgresError(err))
	}
	return value, true, nil
}

func (r *SessionRepository) SetItem(ctx context.Context, sessionID, key, value string) error {
	expiresAt := time.Now().Add(r.ttl)

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO session_items (session_id, item_key, item_value, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (session_id, item_key)
			DO UPDATE SET item_value = EXCLUDED.item_value, expires_at = EXCLUDED.expires_at, updated_at = NOW()
		`
		if _, err := tx.Exec(ctx, upsert, sessionID, key, value, expiresAt); err != nil {
			return fmt.Errorf("failed to set session item: %w", database.MapPostgresError(err))
		}

		touch := `UPDATE session_items SET expires_at = $2 WHERE session_id = $1 AND item_key <> $3`
		if _, err := tx.Exec(ctx, touch, sessionID, expiresAt, key); err != nil {
			return fmt.Errorf("failed to extend session: %w", database.MapPostgresError(err))
		}
		return nil
	})
}

func (r *SessionRepository) RemoveItem(ctx context.Context, sessionID, key string) error {
	query := `DELETE FROM session_items WHERE session_id = $1 AND item_key = $2`

	if _, err := r.db.Pool.Exec(ctx, query, sessionID, key); err != nil {
		return fmt.Errorf("failed to remove session item: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	query := `DELETE FROM session_items WHERE session_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", database.MapPostgresError(err))
	}
	return nil
}

// DeleteExpired removes expired items and returns how many were deleted.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM session_items WHERE expires_at <= NOW()`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
