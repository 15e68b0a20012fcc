package studenthub

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account store backing the reference server.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByVerifyToken(ctx context.Context, token string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	ListByStatus(ctx context.Context, status UserStatus) ([]*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error)
	SetVerifyToken(ctx context.Context, id uuid.UUID, token string) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

type users struct {
	db     *bun.DB
	logger Logger
}

// NewUsersRepository will create a Users store backed by the given database.
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db, logger: defLogger{}}
}

// CreateUserSchema ensures the users table exists.
func CreateUserSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}

func (u *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return u.getOne(ctx, "lower(email) = lower(?)", email)
}

func (u *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return u.getOne(ctx, "id = ?", id)
}

func (u *users) GetByVerifyToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrIdentityNotFound
	}
	return u.getOne(ctx, "verify_token = ?", token)
}

func (u *users) getOne(ctx context.Context, where string, arg any) (*User, error) {
	user := &User{}
	err := u.db.NewSelect().
		Model(user).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query user")
	}
	user.EnsureStatus()
	return user, nil
}

func (u *users) Create(ctx context.Context, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.EnsureStatus()

	if _, err := u.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}
	return user, nil
}

func (u *users) ListByStatus(ctx context.Context, status UserStatus) ([]*User, error) {
	records := []*User{}
	err := u.db.NewSelect().
		Model(&records).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (u *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus) (*User, error) {
	user, err := u.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.Status.CanTransitionTo(status) {
		return nil, ErrInvalidStatusTransition.WithMetadata(map[string]any{
			"from": user.Status,
			"to":   status,
		})
	}

	now := time.Now()
	user.Status = status
	user.UpdatedAt = &now
	if _, err := u.db.NewUpdate().
		Model(user).
		Column("status", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user status")
	}
	return user, nil
}

func (u *users) SetVerifyToken(ctx context.Context, id uuid.UUID, token string) error {
	now := time.Now()
	_, err := u.db.NewUpdate().
		Model((*User)(nil)).
		Set("verify_token = ?", token).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set verify token")
	}
	return nil
}

func (u *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	now := time.Now()
	user.LoggedInAt = &now
	_, err := u.db.NewUpdate().
		Model(user).
		Column("loggedin_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	return nil
}

// isUniqueViolation matches SQLite's unique constraint error text. Good
// enough for the drivers sqliteshim selects.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

var _ Users = (*users)(nil)
