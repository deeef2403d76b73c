package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/users"
)

// CreateUser inserts a new user and fills in the generated id. A duplicate
// username fails with autherr.ErrUsernameExists and leaves the stored
// record untouched.
func (s *Storage) CreateUser(ctx context.Context, user *users.User) error {
	query := `
		INSERT INTO users (username, password, display_name, email, date_joined)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		nullableString(user.Email),
		user.DateJoined,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return autherr.ErrUsernameExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*users.User, error) {
	query := `
		SELECT id, username, password, display_name, email, date_joined
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by id.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*users.User, error) {
	query := `
		SELECT id, username, password, display_name, email, date_joined
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// ListUsers returns all registered users.
func (s *Storage) ListUsers(ctx context.Context) ([]*users.User, error) {
	query := `
		SELECT id, username, password, display_name, email, date_joined
		FROM users
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*users.User
	for rows.Next() {
		user := &users.User{}
		var email sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &email, &user.DateJoined); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Email = email.String
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return result, nil
}

func (s *Storage) scanUser(row *sql.Row) (*users.User, error) {
	user := &users.User{}
	var email sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&email,
		&user.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Email = email.String
	return user, nil
}

// nullableString stores empty strings as NULL so a UNIQUE column accepts
// many users without the optional field.
func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
