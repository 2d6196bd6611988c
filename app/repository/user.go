package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/breviobot/breviobot-service/app/entity"
)

const selectUserColumns = `
		SELECT id, username, email, canonical_email, password_hash, is_active, is_verified, is_admin,
		       verification_token, created_at, updated_at
		FROM users`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and fills in its id. A unique index violation is
// returned as *DuplicateKeyError.
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (username, email, canonical_email, password_hash, is_active, is_verified, is_admin, verification_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.CanonicalEmail,
		user.PasswordHash,
		user.IsActive,
		user.IsVerified,
		user.IsAdmin,
		user.VerificationToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return translateError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE username = ?`, username)
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE id = ?`, id)
}

func (r *UserRepository) FindByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	return r.findOne(ctx, selectUserColumns+` WHERE verification_token = ?`, token)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	user := &entity.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.CanonicalEmail,
		&user.PasswordHash,
		&user.IsActive,
		&user.IsVerified,
		&user.IsAdmin,
		&user.VerificationToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// MarkVerified flips is_verified and clears the token, but only while the row
// still carries that token. It returns the number of rows changed.
func (r *UserRepository) MarkVerified(ctx context.Context, id uint64, token string, now time.Time) (int64, error) {
	query := `
		UPDATE users SET
			is_verified = ?,
			verification_token = NULL,
			updated_at = ?
		WHERE id = ? AND verification_token = ?
	`
	result, err := r.db.ExecContext(ctx, query, true, now, id, token)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) UpdateVerificationToken(ctx context.Context, id uint64, token string, now time.Time) error {
	query := `
		UPDATE users SET
			verification_token = ?,
			updated_at = ?
		WHERE id = ? AND is_verified = ?
	`
	_, err := r.db.ExecContext(ctx, query, token, now, id, false)
	return translateError(err)
}

func (r *UserRepository) SetActive(ctx context.Context, username string, active bool, now time.Time) (int64, error) {
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE username = ?`
	result, err := r.db.ExecContext(ctx, query, active, now, username)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) SetAdmin(ctx context.Context, username string, admin bool, now time.Time) (int64, error) {
	query := `UPDATE users SET is_admin = ?, updated_at = ? WHERE username = ?`
	result, err := r.db.ExecContext(ctx, query, admin, now, username)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
