package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/token"
)

// CreateAuthCode stores a freshly issued authorization code.
func (s *Storage) CreateAuthCode(ctx context.Context, code *token.AuthorizationCode) error {
	query := `
		INSERT INTO auth_codes (code, client_id, user_id, scope, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		code.Code,
		code.ClientID,
		code.UserID,
		code.Scope,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auth code: %w", err)
	}

	return nil
}

// ConsumeAuthCode reads and deletes the code row in one transaction.
// Codes are single-use: of two exchanges racing on the same code, exactly
// one gets the row and the other gets autherr.ErrNotFound.
func (s *Storage) ConsumeAuthCode(ctx context.Context, codeValue string) (*token.AuthorizationCode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT code, client_id, user_id, scope, expires_at
		FROM auth_codes
		WHERE code = ?
	`

	code := &token.AuthorizationCode{}
	err = tx.QueryRowContext(ctx, query, codeValue).Scan(
		&code.Code,
		&code.ClientID,
		&code.UserID,
		&code.Scope,
		&code.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get auth code: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM auth_codes WHERE code = ?`, codeValue)
	if err != nil {
		return nil, fmt.Errorf("failed to delete auth code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Another exchange consumed the code between our read and delete.
		return nil, autherr.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return code, nil
}
