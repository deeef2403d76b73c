package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mwufi/ara-auth/internal/autherr"
)

// Manager maps a browser-presented session id to zero or one current
// session, while the store may hold many active rows for the same browser
// across logins.
type Manager struct {
	repo    Repo
	nowTime func() time.Time
}

type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:    repo,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Login creates a new active session for the user and returns it. clientID
// may be empty when the login did not originate from an OAuth redirect.
func (m *Manager) Login(ctx context.Context, userID int64, clientID string) (*Session, error) {
	now := m.nowTime()
	session := &Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		ClientID:   clientID,
		CreatedAt:  now,
		LastActive: now,
		Active:     true,
	}
	if err := m.repo.CreateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "[Manager.Login] repo.CreateSession")
	}
	return session, nil
}

// Current resolves a browser-presented session id to its session row,
// failing with ErrUnauthenticated when the id is unknown or the session
// has been deactivated.
func (m *Manager) Current(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, autherr.ErrUnauthenticated
	}
	session, err := m.repo.GetSession(ctx, sessionID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "[Manager.Current] repo.GetSession")
	}
	if !session.Active {
		return nil, autherr.ErrUnauthenticated
	}
	if err := m.repo.TouchSession(ctx, session.ID); err != nil {
		return nil, errors.Wrap(err, "[Manager.Current] repo.TouchSession")
	}
	return session, nil
}

// ListActive returns every active session joined with its user, for the
// account picker and the dashboard.
func (m *Manager) ListActive(ctx context.Context) ([]*ActiveSession, error) {
	return m.repo.ListActiveSessions(ctx)
}

// ActiveForUser returns the user's active session, or ErrNotFound when the
// user has none.
func (m *Manager) ActiveForUser(ctx context.Context, userID int64) (*Session, error) {
	return m.repo.ActiveSessionByUserID(ctx, userID)
}

// Switch deactivates the browser's current session and creates a new one
// bound to the target user, preserving the client id from the prior
// session. Deactivation and creation are sequenced in one store
// transaction so both are never active simultaneously.
func (m *Manager) Switch(ctx context.Context, currentSessionID string, targetUserID int64) (*Session, error) {
	current, err := m.Current(ctx, currentSessionID)
	if err != nil {
		return nil, err
	}

	now := m.nowTime()
	next := &Session{
		ID:         uuid.New().String(),
		UserID:     targetUserID,
		ClientID:   current.ClientID,
		CreatedAt:  now,
		LastActive: now,
		Active:     true,
	}
	if err := m.repo.SwitchActiveSession(ctx, current.ID, next); err != nil {
		return nil, errors.Wrap(err, "[Manager.Switch] repo.SwitchActiveSession")
	}
	return next, nil
}

// Logout flags a session inactive. The row is kept for auditing.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.repo.DeactivateSession(ctx, sessionID); err != nil {
		return errors.Wrap(err, "[Manager.Logout] repo.DeactivateSession")
	}
	return nil
}
