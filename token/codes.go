package token

import (
	"context"
	"time"
)

// AuthorizationCode is the single-use, short-lived credential issued at
// consent approval and exchanged for a token pair.
type AuthorizationCode struct {
	Code      string
	ClientID  string
	UserID    int64
	Scope     string
	ExpiresAt time.Time
}

// Expired reports whether the code's validity window has passed.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// CodeRepo persists authorization codes. ConsumeAuthCode must atomically
// remove the row and return it, so two exchanges racing on the same code
// yield exactly one success; the loser gets autherr.ErrNotFound.
type CodeRepo interface {
	CreateAuthCode(ctx context.Context, code *AuthorizationCode) error
	ConsumeAuthCode(ctx context.Context, code string) (*AuthorizationCode, error)
}
