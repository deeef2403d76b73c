package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/autherr"
)

const (
	// GrantTypeAuthorizationCode exchanges a one-time code for a token pair.
	GrantTypeAuthorizationCode = "authorization_code"
	// GrantTypeRefreshToken rotates a refresh token into a new token pair.
	GrantTypeRefreshToken = "refresh_token"

	refreshTokenLength = 32 // bytes, 256 bits of entropy
)

// Manager mints and verifies access tokens and runs the token-endpoint
// grant exchange against the credential store.
type Manager struct {
	codes             CodeRepo
	tokens            Repo
	clients           clients.Repo
	signer            Signer
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(codeRepo CodeRepo, tokenRepo Repo, clientRepo clients.Repo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		codes:   codeRepo,
		tokens:  tokenRepo,
		clients: clientRepo,
		signer:  signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// IssueAccessToken mints a signed bearer token carrying the subject, the
// client and an absolute expiry.
func (m *Manager) IssueAccessToken(userID int64, clientID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":       strconv.FormatInt(userID, 10),
		"client_id": clientID,
		"iat":       m.nowFunc().Unix(),
		"exp":       m.nowFunc().Add(m.accessTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.IssueAccessToken signer.Sign")
	}
	return signed, nil
}

// VerifyAccessToken checks the signature and expiry of a bearer token and
// returns the subject and client it was issued to. Any malformed,
// tampered or expired token fails with ErrUnauthenticated.
func (m *Manager) VerifyAccessToken(rawToken string) (userID int64, clientID string, err error) {
	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return 0, "", autherr.ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", autherr.ErrUnauthenticated
	}

	sub, _ := claims["sub"].(string)
	userID, err = strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", autherr.ErrUnauthenticated
	}
	clientID, _ = claims["client_id"].(string)
	return userID, clientID, nil
}

// Exchange runs the token-endpoint grant exchange: it authenticates the
// client, then either consumes an authorization code or rotates a refresh
// token, and mints a fresh token pair either way.
func (m *Manager) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	client, err := m.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		log.Info().Str("client_id", req.ClientID).Msg("token request for unknown client")
		return nil, autherr.ErrInvalidClient
	}
	if client.Secret != req.ClientSecret {
		log.Info().Str("client_id", req.ClientID).Msg("token request with bad client secret")
		return nil, autherr.ErrInvalidClient
	}
	if !client.RedirectURIMatches(req.RedirectURI) {
		log.Info().Str("client_id", req.ClientID).Msg("token request with mismatched redirect uri")
		return nil, autherr.ErrInvalidClient
	}

	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return m.exchangeAuthorizationCode(ctx, req)
	case GrantTypeRefreshToken:
		return m.exchangeRefreshToken(ctx, req)
	default:
		return nil, autherr.ErrUnsupportedGrantType
	}
}

func (m *Manager) exchangeAuthorizationCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, autherr.Wrapf(autherr.ErrInvalidGrant, "code is required")
	}

	// Consuming deletes the row atomically, so a racing exchange on the
	// same code loses with ErrNotFound here.
	code, err := m.codes.ConsumeAuthCode(ctx, req.Code)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "Manager.Exchange codes.ConsumeAuthCode")
	}
	if code.Expired(m.nowFunc()) {
		return nil, autherr.Wrapf(autherr.ErrInvalidGrant, "code expired")
	}
	if code.ClientID != req.ClientID {
		return nil, autherr.ErrInvalidGrant
	}

	resp, err := m.mintPair(ctx, code.UserID, req.ClientID, code.Scope)
	if err != nil {
		return nil, err
	}

	log.Info().Str("client_id", req.ClientID).Int64("user_id", code.UserID).Msg("token pair issued for authorization code")
	return resp, nil
}

func (m *Manager) exchangeRefreshToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, autherr.Wrapf(autherr.ErrInvalidGrant, "refresh_token is required")
	}

	// Rotation: the old record is deleted before the new pair exists, so a
	// replay of the old refresh token fails closed.
	prior, err := m.tokens.ConsumeByRefreshToken(ctx, req.RefreshToken, req.ClientID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "Manager.Exchange tokens.ConsumeByRefreshToken")
	}

	resp, err := m.mintPair(ctx, prior.UserID, req.ClientID, prior.Scope)
	if err != nil {
		return nil, err
	}

	log.Info().Str("client_id", req.ClientID).Int64("user_id", prior.UserID).Msg("refresh token rotated")
	return resp, nil
}

func (m *Manager) mintPair(ctx context.Context, userID int64, clientID, scope string) (*TokenResponse, error) {
	accessToken, err := m.IssueAccessToken(userID, clientID)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.mintPair IssueAccessToken")
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "Manager.mintPair newRefreshToken")
	}

	if err := m.tokens.CreateTokenRecord(ctx, &Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       userID,
		ClientID:     clientID,
		Scope:        scope,
		ExpiresAt:    m.nowFunc().Add(m.accessTokenExpiry),
	}); err != nil {
		return nil, errors.Wrap(err, "Manager.mintPair tokens.CreateTokenRecord")
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

// newRefreshToken returns an opaque handle with no embedded semantics.
func newRefreshToken() (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "rand.Read")
	}
	return hex.EncodeToString(tokenBytes), nil
}
