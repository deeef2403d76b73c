package clients

import (
	"github.com/google/uuid"
)

// Client is a registered OAuth2 client. The secret is generated server-side
// at registration and is returned to the caller exactly once; it is never
// exposed by any other endpoint. Clients are immutable after creation.
type Client struct {
	ID          string `json:"client_id"`
	Secret      string `json:"-"` // never serialize after registration
	RedirectURI string `json:"redirect_uri"`
	Name        string `json:"name"`
}

// New creates a client with a freshly generated id and secret.
func New(name, redirectURI string) *Client {
	return &Client{
		ID:          uuid.New().String(),
		Secret:      uuid.New().String(),
		RedirectURI: redirectURI,
		Name:        name,
	}
}

// RedirectURIMatches reports whether the submitted redirect URI exactly
// matches the registered one. Matching is byte-for-byte, no normalisation.
func (c *Client) RedirectURIMatches(uri string) bool {
	return c.RedirectURI == uri
}
