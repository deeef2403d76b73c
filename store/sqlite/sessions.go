package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/users"
)

// CreateSession inserts a new session row.
func (s *Storage) CreateSession(ctx context.Context, session *sessions.Session) error {
	query := `
		INSERT INTO user_sessions (session_id, user_id, client_id, created_at, last_active, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		nullableString(session.ClientID),
		session.CreatedAt,
		session.LastActive,
		boolToInt(session.Active),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session row by id, active or not.
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*sessions.Session, error) {
	query := `
		SELECT session_id, user_id, client_id, created_at, last_active, is_active
		FROM user_sessions
		WHERE session_id = ?
	`

	session := &sessions.Session{}
	var clientID sql.NullString
	var active int

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&clientID,
		&session.CreatedAt,
		&session.LastActive,
		&active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.ClientID = clientID.String
	session.Active = active == 1
	return session, nil
}

// ListActiveSessions returns every active session joined with its user.
func (s *Storage) ListActiveSessions(ctx context.Context) ([]*sessions.ActiveSession, error) {
	query := `
		SELECT s.session_id, s.user_id, s.client_id, s.created_at, s.last_active,
		       u.id, u.username, u.display_name
		FROM user_sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.is_active = 1
		ORDER BY s.created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*sessions.ActiveSession
	for rows.Next() {
		session := &sessions.Session{Active: true}
		user := &users.User{}
		var clientID sql.NullString

		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&clientID,
			&session.CreatedAt,
			&session.LastActive,
			&user.ID,
			&user.Username,
			&user.DisplayName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan active session: %w", err)
		}
		session.ClientID = clientID.String
		result = append(result, &sessions.ActiveSession{Session: session, User: user})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active sessions: %w", err)
	}

	return result, nil
}

// ActiveSessionByUserID returns the user's most recent active session.
func (s *Storage) ActiveSessionByUserID(ctx context.Context, userID int64) (*sessions.Session, error) {
	query := `
		SELECT session_id, user_id, client_id, created_at, last_active, is_active
		FROM user_sessions
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`

	session := &sessions.Session{}
	var clientID sql.NullString
	var active int

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&session.ID,
		&session.UserID,
		&clientID,
		&session.CreatedAt,
		&session.LastActive,
		&active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	session.ClientID = clientID.String
	session.Active = active == 1
	return session, nil
}

// DeactivateSession soft-flags a session inactive. The row is kept as an
// audit trail.
func (s *Storage) DeactivateSession(ctx context.Context, sessionID string) error {
	query := `
		UPDATE user_sessions
		SET is_active = 0, last_active = ?
		WHERE session_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return autherr.ErrNotFound
	}

	return nil
}

// SwitchActiveSession deactivates the current session and creates the next
// one in a single transaction, so no reader ever observes both active.
func (s *Storage) SwitchActiveSession(ctx context.Context, currentSessionID string, next *sessions.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0, last_active = ? WHERE session_id = ?`,
		time.Now().UTC(), currentSessionID,
	); err != nil {
		return fmt.Errorf("failed to deactivate current session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_sessions (session_id, user_id, client_id, created_at, last_active, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		next.ID,
		next.UserID,
		nullableString(next.ClientID),
		next.CreatedAt,
		next.LastActive,
		boolToInt(next.Active),
	); err != nil {
		return fmt.Errorf("failed to insert next session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// TouchSession bumps a session's last-active timestamp.
func (s *Storage) TouchSession(ctx context.Context, sessionID string) error {
	query := `
		UPDATE user_sessions
		SET last_active = ?
		WHERE session_id = ?
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return autherr.ErrNotFound
	}

	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
