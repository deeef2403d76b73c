package sessions

import "context"

// Repo persists session rows. SwitchActiveSession must deactivate the old
// row and create the new one in a single transaction, so a reader never
// observes both active at once.
type Repo interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ListActiveSessions(ctx context.Context) ([]*ActiveSession, error)
	ActiveSessionByUserID(ctx context.Context, userID int64) (*Session, error)
	DeactivateSession(ctx context.Context, sessionID string) error
	SwitchActiveSession(ctx context.Context, currentSessionID string, next *Session) error
	TouchSession(ctx context.Context, sessionID string) error
}
