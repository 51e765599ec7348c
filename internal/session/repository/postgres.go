package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"client-connect/backend/internal/db"
	"client-connect/backend/internal/session/domain"
)

// PostgresRepository implements Repository over db.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

const selectToken = `
	SELECT t.id, t.user_id, u.username, t.token_hash, t.expires_at, t.created_at, t.updated_at
	FROM refresh_tokens t
	JOIN users u ON u.id = t.user_id
`

// GetByUserID returns the user's refresh token, or nil if none exists.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	return r.getOne(ctx, selectToken+` WHERE t.user_id = $1`, userID)
}

// GetByTokenHash returns the refresh token with the given hash, or nil if none exists.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	return r.getOne(ctx, selectToken+` WHERE t.token_hash = $1`, tokenHash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&t.ID, &t.UserID, &t.Username, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Upsert writes t keyed by user_id. On conflict the existing id and created_at are kept and
// copied back into t.
func (r *PostgresRepository) Upsert(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt, t.UpdatedAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Delete removes a refresh token by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes every token with expires_at before cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
