package token

import (
	"context"
	"time"
)

// Record is the server-side storage of an issued token pair. The access
// token is self-verifying and kept only for reference; the refresh token
// is the durable handle and stays valid until rotated.
type Record struct {
	AccessToken  string
	RefreshToken string
	UserID       int64
	ClientID     string
	Scope        string
	ExpiresAt    time.Time
}

// Repo manages token pair records. ConsumeByRefreshToken must atomically
// remove the matching row and return it; when the token is unknown for the
// client (including "already rotated") it fails with autherr.ErrNotFound.
type Repo interface {
	CreateTokenRecord(ctx context.Context, record *Record) error
	ConsumeByRefreshToken(ctx context.Context, refreshToken, clientID string) (*Record, error)
}
