package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryUsers is an in-process UserDirectory. The check for an existing
// email and the insert happen under one lock so uniqueness holds under
// concurrent registration.
type MemoryUsers struct {
	mu           sync.RWMutex
	byEmail      map[string]*User
	passwordCost int
	useHashid    bool
	clock        Clock
}

var _ UserDirectory = (*MemoryUsers)(nil)

// NewMemoryUsers returns an empty directory. A bcrypt cost of zero uses
// the package default.
func NewMemoryUsers(passwordCost int) *MemoryUsers {
	return &MemoryUsers{
		byEmail:      map[string]*User{},
		passwordCost: passwordCost,
		clock:        time.Now,
	}
}

// WithHashidIDs derives ids from the email.
func (m *MemoryUsers) WithHashidIDs() *MemoryUsers {
	m.useHashid = true
	return m
}

func (m *MemoryUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrDirectoryUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (m *MemoryUsers) Create(ctx context.Context, input NewUser) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrDirectoryUnavailable
	}

	email := NormalizeEmail(input.Email)

	m.mu.RLock()
	_, exists := m.byEmail[email]
	m.mu.RUnlock()
	if exists {
		return nil, ErrUserAlreadyExists
	}

	// hash outside the lock, bcrypt is slow
	record, err := newUserRecord(input, m.passwordCost, m.useHashid)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	record.CreatedAt = &now
	record.UpdatedAt = &now

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, ErrUserAlreadyExists
	}
	m.byEmail[email] = record

	clone := *record
	return &clone, nil
}

// Len returns the number of stored users.
func (m *MemoryUsers) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byEmail)
}
