package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hakangoksu/user-management/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store is the persistence contract the services depend on.
type Store interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SetLastLogin(ctx context.Context, id uuid.UUID, t time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeUnverified(ctx context.Context) (int, error)
}

// Repository handles user data persistence
type Repository struct {
	db *bun.DB
}

var _ Store = (*Repository)(nil)

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	dbUser := mapModelToDBUser(u)

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("email = ?", email).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// List returns all users, most recently seen first. Users who never logged
// in sort by their registration time.
func (r *Repository) List(ctx context.Context) ([]*User, error) {
	var dbUsers []*database.User
	err := r.db.NewSelect().
		Model(&dbUsers).
		OrderExpr("COALESCE(last_login_time, registration_time) DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(dbUsers))
	for _, dbu := range dbUsers {
		users = append(users, mapDBUserToModel(dbu))
	}

	return users, nil
}

// Update persists the mutable lifecycle fields of a user.
func (r *Repository) Update(ctx context.Context, u *User) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("email_confirmed = ?", u.EmailConfirmed).
		Set("is_blocked = ?", u.IsBlocked).
		Set("status = ?", string(u.Status)).
		Set("email_verification_token = ?", u.EmailVerificationToken).
		Set("email_verification_sent_at = ?", u.EmailVerificationSentAt).
		Where("id = ?", u.ID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetLastLogin stamps the last successful sign-in time.
func (r *Repository) SetLastLogin(ctx context.Context, id uuid.UUID, t time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_login_time = ?", t).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to set last login time: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a user record. Hard delete, no tombstone.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// PurgeUnverified deletes every user still in the unverified state and
// returns how many were removed. A single statement, so observers never
// see a partial purge.
func (r *Repository) PurgeUnverified(ctx context.Context) (int, error) {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("status = ?", string(StatusUnverified)).
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to purge unverified users: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                      dbu.ID,
		Username:                dbu.Username,
		Email:                   dbu.Email,
		PasswordHash:            dbu.PasswordHash,
		EmailConfirmed:          dbu.EmailConfirmed,
		IsBlocked:               dbu.IsBlocked,
		Status:                  Status(dbu.Status),
		EmailVerificationToken:  dbu.EmailVerificationToken,
		EmailVerificationSentAt: dbu.EmailVerificationSentAt,
		RegistrationTime:        dbu.RegistrationTime,
		LastLoginTime:           dbu.LastLoginTime,
	}
}

// mapModelToDBUser converts domain model to database model
func mapModelToDBUser(u *User) *database.User {
	return &database.User{
		ID:                      u.ID,
		Username:                u.Username,
		Email:                   u.Email,
		PasswordHash:            u.PasswordHash,
		EmailConfirmed:          u.EmailConfirmed,
		IsBlocked:               u.IsBlocked,
		Status:                  string(u.Status),
		EmailVerificationToken:  u.EmailVerificationToken,
		EmailVerificationSentAt: u.EmailVerificationSentAt,
		RegistrationTime:        u.RegistrationTime,
		LastLoginTime:           u.LastLoginTime,
	}
}
