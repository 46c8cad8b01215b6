package auth

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the SQL backed UserDirectory.
type Users interface {
	UserDirectory
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user NewUser) (*User, error)
}

type users struct {
	repo         repository.Repository[*User]
	db           bun.IDB
	passwordCost int
	useHashid    bool
	logger       Logger
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithPasswordCost sets the bcrypt cost used when creating users.
func WithPasswordCost(cost int) UsersOption {
	return func(u *users) {
		u.passwordCost = cost
	}
}

// WithHashidIDs derives user ids from the email instead of random UUIDs.
func WithHashidIDs() UsersOption {
	return func(u *users) {
		u.useHashid = true
	}
}

// WithUsersLogger sets the repository logger.
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		u.logger = normalizeLogger(logger)
	}
}

func NewUsersRepository(db bun.IDB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		repo:         repo,
		db:           db,
		passwordCost: passwordHashCost(),
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	record, err := a.repo.GetByIdentifierTx(ctx, tx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, a.directoryError(err, "failed to retrieve user by email")
	}

	if record == nil {
		return nil, ErrUserNotFound
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, user NewUser) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

// CreateTx relies on the unique index on email, so two concurrent
// registrations for the same address cannot both succeed.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, input NewUser) (*User, error) {
	record, err := newUserRecord(input, a.passwordCost, a.useHashid)
	if err != nil {
		return nil, err
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, a.directoryError(err, "failed to create user")
	}

	return record, nil
}

func (a *users) directoryError(err error, msg string) error {
	if isUnavailable(err) {
		a.logger.Error("users directory unavailable", "operation", msg, "error", err)
		return ErrDirectoryUnavailable
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

func newUserRecord(input NewUser, cost int, useHashid bool) (*User, error) {
	hash, err := HashPasswordWithCost(input.Password, cost)
	if err != nil {
		return nil, err
	}

	email := NormalizeEmail(input.Email)
	now := time.Now().UTC()
	record := &User{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Username:     getUsername(input.Username, email),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	if useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			record.ID = id
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	return record, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func isUnavailable(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, driver.ErrBadConn) ||
		stderrors.Is(err, sql.ErrConnDone)
}
