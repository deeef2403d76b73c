package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/autherr"
)

// CreateClient inserts a new client. Clients are immutable after creation.
func (s *Storage) CreateClient(ctx context.Context, client *clients.Client) error {
	query := `
		INSERT INTO clients (client_id, client_secret, redirect_uri, name)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		client.ID,
		client.Secret,
		client.RedirectURI,
		client.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}

	return nil
}

// GetClient retrieves a client by id.
func (s *Storage) GetClient(ctx context.Context, clientID string) (*clients.Client, error) {
	query := `
		SELECT client_id, client_secret, redirect_uri, name
		FROM clients
		WHERE client_id = ?
	`

	client := &clients.Client{}
	err := s.db.QueryRowContext(ctx, query, clientID).Scan(
		&client.ID,
		&client.Secret,
		&client.RedirectURI,
		&client.Name,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// ListClients returns all registered clients.
func (s *Storage) ListClients(ctx context.Context) ([]*clients.Client, error) {
	query := `
		SELECT client_id, client_secret, redirect_uri, name
		FROM clients
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*clients.Client
	for rows.Next() {
		client := &clients.Client{}
		if err := rows.Scan(&client.ID, &client.Secret, &client.RedirectURI, &client.Name); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		result = append(result, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return result, nil
}
