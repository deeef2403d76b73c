package sessions

import (
	"time"

	"github.com/mwufi/ara-auth/users"
)

// Session is one login on one browser. A browser may hold many concurrent
// active sessions (one per user it is logged in as); its cookie points at
// the single "current" one. Deactivation is a soft flag so the row survives
// as an audit trail.
type Session struct {
	ID         string    // opaque, unique per login
	UserID     int64     // owning user
	ClientID   string    // set when the login originated from an OAuth redirect, else empty
	CreatedAt  time.Time
	LastActive time.Time
	Active     bool
}

// ActiveSession pairs a session row with its owning user, as rendered on
// the account picker and the dashboard.
type ActiveSession struct {
	Session *Session
	User    *users.User
}
