package auth_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/store/sqlite"
	"github.com/mwufi/ara-auth/token"
	"github.com/mwufi/ara-auth/users"
)

type flowFixture struct {
	storage        *sqlite.Storage
	service        *auth.Service
	sessionManager *sessions.Manager
	tokenManager   *token.Manager
	client         *clients.Client
	alice          *users.User
	bob            *users.User
}

const testPassword = "correct horse battery staple"

func setupFlow(t *testing.T, options ...auth.ServiceOption) *flowFixture {
	ctx := context.Background()

	storage, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	client := clients.New("Test App", "https://app.example.com/callback")
	require.NoError(t, storage.CreateClient(ctx, client))

	hash, err := users.HashPassword(testPassword)
	require.NoError(t, err)

	alice := &users.User{Username: "alice", PasswordHash: hash, DisplayName: "Alice", DateJoined: time.Now()}
	require.NoError(t, storage.CreateUser(ctx, alice))
	bob := &users.User{Username: "bob", PasswordHash: hash, DisplayName: "Bob", DateJoined: time.Now()}
	require.NoError(t, storage.CreateUser(ctx, bob))

	sessionManager := sessions.NewManager(storage)
	signer := token.NewHMACSigner([]byte("test-signing-secret"))
	tokenManager := token.New(storage, storage, storage, signer)

	service, err := auth.NewService(auth.Repos{
		Clients: storage,
		Users:   storage,
		Codes:   storage,
	}, sessionManager, tokenManager, options...)
	require.NoError(t, err)

	return &flowFixture{
		storage:        storage,
		service:        service,
		sessionManager: sessionManager,
		tokenManager:   tokenManager,
		client:         client,
		alice:          alice,
		bob:            bob,
	}
}

func (f *flowFixture) params() auth.Parameters {
	return auth.Parameters{
		ClientID:     f.client.ID,
		RedirectURI:  f.client.RedirectURI,
		Scope:        "profile",
		State:        "xyz-state",
		ResponseType: "code",
	}
}

func TestAuthorize_UnknownClient(t *testing.T) {
	f := setupFlow(t)

	p := f.params()
	p.ClientID = "unknown"
	result := f.service.Authorize(context.Background(), p)

	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrInvalidClient)
}

func TestAuthorize_RedirectURIMismatch(t *testing.T) {
	f := setupFlow(t)

	p := f.params()
	p.RedirectURI = "https://evil.example.com/callback"
	result := f.service.Authorize(context.Background(), p)

	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrInvalidClient)
}

func TestAuthorize_NoSessions_ShowsLogin(t *testing.T) {
	f := setupFlow(t)

	result := f.service.Authorize(context.Background(), f.params())

	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageLogin, result.Page)
	assert.Equal(t, "xyz-state", result.Data["State"])
}

func TestAuthorize_WithSessions_ShowsAccountPicker(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	_, err := f.sessionManager.Login(ctx, f.alice.ID, f.client.ID)
	require.NoError(t, err)

	result := f.service.Authorize(ctx, f.params())

	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageAccountPicker, result.Page)
	active, ok := result.Data["Sessions"].([]*sessions.ActiveSession)
	require.True(t, ok)
	require.Len(t, active, 1)
	assert.Equal(t, "alice", active[0].User.Username)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	result := f.service.Login(ctx, f.params(), "alice", "wrong password")
	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageLogin, result.Page)
	assert.Equal(t, "Invalid credentials", result.Data["Error"])
	assert.Empty(t, result.SessionID)

	// Unknown user reads identically to a bad password.
	result = f.service.Login(ctx, f.params(), "mallory", testPassword)
	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, "Invalid credentials", result.Data["Error"])
}

func TestLogin_Success_OAuthFlow(t *testing.T) {
	f := setupFlow(t)

	result := f.service.Login(context.Background(), f.params(), "alice", testPassword)

	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageConsent, result.Page)
	require.NotEmpty(t, result.SessionID)

	user, ok := result.Data["User"].(*users.User)
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)
}

func TestLogin_Success_NoFlowParameters(t *testing.T) {
	f := setupFlow(t)

	result := f.service.Login(context.Background(), auth.Parameters{}, "alice", testPassword)

	require.Equal(t, auth.KindRedirect, result.Kind)
	assert.Equal(t, "/dashboard", result.RedirectURL)
	assert.Equal(t, http.StatusSeeOther, result.RedirectStatus)
	assert.NotEmpty(t, result.SessionID)
}

type denyAllPolicy struct{}

func (denyAllPolicy) Allow(string) bool { return false }

func TestLogin_RateLimited(t *testing.T) {
	f := setupFlow(t, auth.WithLoginPolicy(denyAllPolicy{}))

	result := f.service.Login(context.Background(), f.params(), "alice", testPassword)

	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageLogin, result.Page)
	assert.Equal(t, "Too many attempts, try again later", result.Data["Error"])
}

func TestSelectAccount(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	session, err := f.sessionManager.Login(ctx, f.alice.ID, f.client.ID)
	require.NoError(t, err)

	result := f.service.SelectAccount(ctx, f.params(), f.alice.ID)
	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageConsent, result.Page)
	assert.Equal(t, session.ID, result.SessionID)

	// Bob has no active session: back to the login form.
	result = f.service.SelectAccount(ctx, f.params(), f.bob.ID)
	require.Equal(t, auth.KindPage, result.Kind)
	assert.Equal(t, auth.PageLogin, result.Page)

	// Unknown user id is an outright error.
	result = f.service.SelectAccount(ctx, f.params(), 99999)
	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrNotFound)
}

func TestConsent_Approved_IssuesCode(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	session, err := f.sessionManager.Login(ctx, f.alice.ID, f.client.ID)
	require.NoError(t, err)

	result := f.service.Consent(ctx, session.ID, f.params(), true)
	require.Equal(t, auth.KindRedirect, result.Kind)
	assert.Equal(t, http.StatusFound, result.RedirectStatus)
	require.True(t, strings.HasPrefix(result.RedirectURL, f.client.RedirectURI+"?"))

	redirect, err := url.Parse(result.RedirectURL)
	require.NoError(t, err)
	query := redirect.Query()
	assert.Equal(t, "xyz-state", query.Get("state"))
	code := query.Get("code")
	require.NotEmpty(t, code)

	// The code exchanges for tokens bound to the consenting user.
	resp, err := f.tokenManager.Exchange(ctx, token.TokenRequest{
		GrantType:    token.GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  f.client.RedirectURI,
		ClientID:     f.client.ID,
		ClientSecret: f.client.Secret,
	})
	require.NoError(t, err)
	userID, _, err := f.tokenManager.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, userID)
}

func TestConsent_Denied(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	session, err := f.sessionManager.Login(ctx, f.alice.ID, f.client.ID)
	require.NoError(t, err)

	result := f.service.Consent(ctx, session.ID, f.params(), false)
	require.Equal(t, auth.KindRedirect, result.Kind)

	redirect, err := url.Parse(result.RedirectURL)
	require.NoError(t, err)
	query := redirect.Query()
	assert.Equal(t, "access_denied", query.Get("error"))
	assert.Equal(t, "xyz-state", query.Get("state"))
	assert.Empty(t, query.Get("code"))
}

func TestConsent_WithoutSession(t *testing.T) {
	f := setupFlow(t)

	result := f.service.Consent(context.Background(), "", f.params(), true)
	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrUnauthenticated)
}

func TestConsent_TamperedRedirectURI(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	session, err := f.sessionManager.Login(ctx, f.alice.ID, f.client.ID)
	require.NoError(t, err)

	p := f.params()
	p.RedirectURI = "https://evil.example.com/callback"
	result := f.service.Consent(ctx, session.ID, p, true)

	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrInvalidClient)
}

func TestUserInfo(t *testing.T) {
	f := setupFlow(t)
	ctx := context.Background()

	raw, err := f.tokenManager.IssueAccessToken(f.alice.ID, f.client.ID)
	require.NoError(t, err)

	result := f.service.UserInfo(ctx, raw)
	require.Equal(t, auth.KindJSON, result.Kind)
	body, ok := result.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.alice.ID, body["user_id"])
	assert.Equal(t, "alice", body["username"])

	result = f.service.UserInfo(ctx, "garbage-token")
	require.Equal(t, auth.KindError, result.Kind)
	assert.ErrorIs(t, result.Err, autherr.ErrUnauthenticated)
}
