package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/breviobot/breviobot-service/app/entity"
)

type RevokedTokenRepository struct {
	db DBTX
}

func NewRevokedTokenRepository(db DBTX) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Create records the token id. Revoking an already revoked id is not an error.
func (r *RevokedTokenRepository) Create(ctx context.Context, token *entity.RevokedToken) error {
	query := `
		INSERT INTO revoked_tokens (jti, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.JTI,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
	)
	err = translateError(err)
	var dupErr *DuplicateKeyError
	if errors.As(err, &dupErr) {
		return nil
	}
	return err
}

func (r *RevokedTokenRepository) Exists(ctx context.Context, jti string) (bool, error) {
	query := `SELECT 1 FROM revoked_tokens WHERE jti = ?`
	var one int
	err := r.db.QueryRowContext(ctx, query, jti).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpired drops entries whose token would be rejected by expiry anyway.
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
