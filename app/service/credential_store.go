package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/breviobot/breviobot-service/app/entity"
	"github.com/breviobot/breviobot-service/app/repository"
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*entity.User, error)
	UpdateVerificationToken(ctx context.Context, id uint64, token string, now time.Time) error
	SetActive(ctx context.Context, username string, active bool, now time.Time) (int64, error)
	SetAdmin(ctx context.Context, username string, admin bool, now time.Time) (int64, error)
}

// CandidateUser is the input for creating an account. Password is plaintext
// and never leaves the store unhashed.
type CandidateUser struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

// CredentialStore is the only component that mutates user rows.
type CredentialStore struct {
	db     *sql.DB
	users  userRepository
	hasher PasswordHasher
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(db *sql.DB, users userRepository, hasher PasswordHasher) *CredentialStore {
	return &CredentialStore{
		db:     db,
		users:  users,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *CredentialStore) Create(ctx context.Context, candidate CandidateUser, verificationToken string) (*entity.User, error) {
	hash, err := s.hasher.Hash(candidate.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &entity.User{
		Username:          candidate.Username,
		Email:             strings.TrimSpace(candidate.Email),
		CanonicalEmail:    CanonicalizeEmail(candidate.Email),
		PasswordHash:      hash,
		IsActive:          true,
		IsVerified:        false,
		IsAdmin:           candidate.IsAdmin,
		VerificationToken: sql.NullString{String: verificationToken, Valid: verificationToken != ""},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err = s.users.Create(ctx, user); err != nil {
		var dupErr *repository.DuplicateKeyError
		if errors.As(err, &dupErr) {
			return nil, &DuplicateUserError{Field: dupErr.Field}
		}
		return nil, err
	}
	return user, nil
}

func (s *CredentialStore) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return notFoundIfNil(s.users.FindByUsername(ctx, username))
}

func (s *CredentialStore) GetByID(ctx context.Context, id uint64) (*entity.User, error) {
	return notFoundIfNil(s.users.FindByID(ctx, id))
}

func (s *CredentialStore) GetByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return notFoundIfNil(s.users.FindByVerificationToken(ctx, token))
}

func notFoundIfNil(user *entity.User, err error) (*entity.User, error) {
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Authenticate fails with ErrInvalidCredentials for both unknown users and
// wrong passwords. Unknown users still pay for one hash comparison.
func (s *CredentialStore) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *CredentialStore) dummy() string {
	s.dummyOnce.Do(func() {
		if hash, err := s.hasher.Hash("breviobot-timing-equalizer"); err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

// Verify redeems the user's verification token. The token is cleared in the
// same conditional update that sets is_verified, so a second redemption of the
// same token affects no rows and returns ErrUserNotFound.
func (s *CredentialStore) Verify(ctx context.Context, user *entity.User) error {
	if !user.VerificationToken.Valid || user.VerificationToken.String == "" {
		return ErrUserNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now()
	affected, err := repository.NewUserRepository(tx).MarkVerified(ctx, user.ID, user.VerificationToken.String, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	user.IsVerified = true
	user.VerificationToken = sql.NullString{}
	user.UpdatedAt = now
	return nil
}

// RotateVerificationToken replaces the pending token of an unverified user.
func (s *CredentialStore) RotateVerificationToken(ctx context.Context, user *entity.User, token string) error {
	now := s.now()
	if err := s.users.UpdateVerificationToken(ctx, user.ID, token, now); err != nil {
		return err
	}
	user.VerificationToken = sql.NullString{String: token, Valid: true}
	user.UpdatedAt = now
	return nil
}

func (s *CredentialStore) SetActive(ctx context.Context, username string, active bool) error {
	affected, err := s.users.SetActive(ctx, username, active, s.now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *CredentialStore) SetAdmin(ctx context.Context, username string, admin bool) error {
	affected, err := s.users.SetAdmin(ctx, username, admin, s.now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
