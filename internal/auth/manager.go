// Package auth registers and authenticates users against stored credential hashes.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nibzard/todoapp-go/internal/store"
)

var (
	// ErrDuplicateUsername is returned when registering a name that already exists.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrEmptyUsername is returned when registering a blank username.
	ErrEmptyUsername = errors.New("username is empty")
	// ErrEmptyPassword is returned when registering a blank password.
	ErrEmptyPassword = errors.New("password is empty")
)

// Manager registers and authenticates users.
type Manager struct {
	store  *store.Store
	hasher Hasher
	logger *log.Logger
}

// NewManager creates a credential manager. A nil logger discards output.
func NewManager(s *store.Store, hasher Hasher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{store: s, hasher: hasher, logger: logger}
}

// Exists reports whether a user with exactly this username exists.
func (m *Manager) Exists(ctx context.Context, username string) (bool, error) {
	var n int
	err := m.store.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

// Register creates a new user and returns its id. Usernames are matched
// case-sensitively.
func (m *Manager) Register(ctx context.Context, username, password string) (int64, error) {
	if username == "" {
		return 0, ErrEmptyUsername
	}
	if password == "" {
		return 0, ErrEmptyPassword
	}

	// Skip the deliberately slow hash when the name is already taken.
	exists, err := m.Exists(ctx, username)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateUsername
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", username, err)
	}

	res, err := m.store.DB().ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)", username, hash)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read user id: %w", err)
	}

	m.logger.Info("user registered", "user_id", id)
	return id, nil
}

// Authenticate checks username and password. On success it returns the user
// id and true. An unknown username and a wrong password both yield false with
// a nil error, so callers cannot tell them apart.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (int64, bool, error) {
	var (
		id   int64
		hash string
	)
	err := m.store.DB().QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE username = ?", username).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		m.logger.Debug("authentication failed")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("look up user: %w", err)
	}

	if !m.hasher.Verify(password, hash) {
		m.logger.Debug("authentication failed")
		return 0, false, nil
	}

	m.logger.Info("user authenticated", "user_id", id)
	return id, true, nil
}

// Username returns the name of the user with the given id.
func (m *Manager) Username(ctx context.Context, id int64) (string, error) {
	var name string
	err := m.store.DB().QueryRowContext(ctx, "SELECT username FROM users WHERE id = ?", id).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("look up user %d: %w", id, err)
	}
	return name, nil
}
