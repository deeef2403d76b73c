package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/token"
)

// CreateTokenRecord stores an issued token pair.
func (s *Storage) CreateTokenRecord(ctx context.Context, record *token.Record) error {
	query := `
		INSERT INTO tokens (access_token, refresh_token, user_id, client_id, scope, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.AccessToken,
		record.RefreshToken,
		record.UserID,
		record.ClientID,
		record.Scope,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token record: %w", err)
	}

	return nil
}

// ConsumeByRefreshToken reads and deletes the token record matching the
// refresh token and client in one transaction. Rotation depends on this:
// once consumed, a replay of the same refresh token finds no row.
func (s *Storage) ConsumeByRefreshToken(ctx context.Context, refreshToken, clientID string) (*token.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT access_token, refresh_token, user_id, client_id, scope, expires_at
		FROM tokens
		WHERE refresh_token = ? AND client_id = ?
	`

	record := &token.Record{}
	err = tx.QueryRowContext(ctx, query, refreshToken, clientID).Scan(
		&record.AccessToken,
		&record.RefreshToken,
		&record.UserID,
		&record.ClientID,
		&record.Scope,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE refresh_token = ? AND client_id = ?`, refreshToken, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete token record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, autherr.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return record, nil
}
