package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/internal/config"
	"github.com/mwufi/ara-auth/server"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/store/sqlite"
	"github.com/mwufi/ara-auth/token"
)

type testEnv struct {
	authServer *httptest.Server
	callback   *httptest.Server
	browser    *http.Client

	clientID     string
	clientSecret string
	redirectURI  string

	mu        sync.Mutex
	lastCode  string
	lastState string
	lastError string
}

func (e *testEnv) recordCallback(r *http.Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCode = r.URL.Query().Get("code")
	e.lastState = r.URL.Query().Get("state")
	e.lastError = r.URL.Query().Get("error")
}

func (e *testEnv) recorded() (code, state, oauthError string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCode, e.lastState, e.lastError
}

func setupEnv(t *testing.T) *testEnv {
	ctx := context.Background()
	env := &testEnv{}

	// Stand-in for the third-party application receiving the redirect.
	env.callback = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.recordCallback(r)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(env.callback.Close)
	env.redirectURI = env.callback.URL + "/callback"

	storage, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	signer := token.NewHMACSigner([]byte("test-signing-secret"))
	sessionManager := sessions.NewManager(storage)
	tokenManager := token.New(storage, storage, storage, signer)

	flow, err := auth.NewService(auth.Repos{
		Clients: storage,
		Users:   storage,
		Codes:   storage,
	}, sessionManager, tokenManager)
	require.NoError(t, err)

	srv, err := server.New(config.New(), server.Repos{Clients: storage, Users: storage}, flow, tokenManager, sessionManager)
	require.NoError(t, err)

	env.authServer = httptest.NewServer(srv)
	t.Cleanup(env.authServer.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.browser = &http.Client{Jar: jar}

	return env
}

func (e *testEnv) registerClient(t *testing.T) {
	resp, err := http.PostForm(e.authServer.URL+"/register_client", url.Values{
		"name":         {"Test App"},
		"redirect_uri": {e.redirectURI},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	e.clientID = body["client_id"]
	e.clientSecret = body["client_secret"]
	require.NotEmpty(t, e.clientID)
	require.NotEmpty(t, e.clientSecret)
}

func (e *testEnv) registerUser(t *testing.T, username, password string) {
	resp, err := http.PostForm(e.authServer.URL+"/register_user", url.Values{
		"username": {username},
		"password": {password},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (e *testEnv) flowValues() url.Values {
	return url.Values{
		"client_id":     {e.clientID},
		"redirect_uri":  {e.redirectURI},
		"scope":         {"profile"},
		"state":         {"e2e-state"},
		"response_type": {"code"},
	}
}

func (e *testEnv) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		RedirectURL:  e.redirectURI,
		Scopes:       []string{"profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.authServer.URL + "/authorize",
			TokenURL:  e.authServer.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// login submits credentials on the authorization endpoint and returns the
// rendered page (the consent form on success).
func (e *testEnv) login(t *testing.T, username, password string) string {
	form := e.flowValues()
	form.Set("username", username)
	form.Set("password", password)
	resp, err := e.browser.PostForm(e.authServer.URL+"/authorize", form)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return readBody(t, resp)
}

// approveConsent submits the consent form; the redirect lands on the
// callback server, which records code and state.
func (e *testEnv) approveConsent(t *testing.T, decision string) {
	form := e.flowValues()
	form.Set("consent", decision)
	resp, err := e.browser.PostForm(e.authServer.URL+"/consent", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	// No sessions yet: the authorization endpoint shows the login form.
	resp, err := env.browser.Get(env.authServer.URL + "/authorize?" + env.flowValues().Encode())
	require.NoError(t, err)
	page := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Sign in")

	page = env.login(t, "alice", "password123")
	assert.Contains(t, page, "Authorize application")

	env.approveConsent(t, "yes")
	code, state, _ := env.recorded()
	require.NotEmpty(t, code)
	assert.Equal(t, "e2e-state", state)

	// Exchange through a stock OAuth2 client library.
	tok, err := env.oauthConfig().Exchange(context.Background(), code)
	require.NoError(t, err)
	assert.True(t, tok.Valid())
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)

	// The access token introspects to the logged-in user.
	req, err := http.NewRequest(http.MethodGet, env.authServer.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	infoResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, infoResp.StatusCode)

	var info map[string]any
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	infoResp.Body.Close()
	assert.Equal(t, "alice", info["username"])
}

func TestAuthorizationCodeFlow_CodeIsSingleUse(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	env.login(t, "alice", "password123")
	env.approveConsent(t, "yes")
	code, _, _ := env.recorded()
	require.NotEmpty(t, code)

	_, err := env.oauthConfig().Exchange(context.Background(), code)
	require.NoError(t, err)

	_, err = env.oauthConfig().Exchange(context.Background(), code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestAuthorizationCodeFlow_Denied(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	env.login(t, "alice", "password123")
	env.approveConsent(t, "no")

	code, state, oauthError := env.recorded()
	assert.Empty(t, code)
	assert.Equal(t, "access_denied", oauthError)
	assert.Equal(t, "e2e-state", state)
}

func TestRefreshTokenRotation(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	env.login(t, "alice", "password123")
	env.approveConsent(t, "yes")

	code, _, _ := env.recorded()
	first, err := env.oauthConfig().Exchange(context.Background(), code)
	require.NoError(t, err)

	refresh := func(refreshToken string) (*http.Response, error) {
		return http.PostForm(env.authServer.URL+"/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
			"redirect_uri":  {env.redirectURI},
			"client_id":     {env.clientID},
			"client_secret": {env.clientSecret},
		})
	}

	resp, err := refresh(first.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var second token.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	resp.Body.Close()
	assert.Equal(t, 3600, second.ExpiresIn)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out handle is dead.
	resp, err = refresh(first.RefreshToken)
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "invalid_grant")
}

func TestAccountPickerFlow(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")
	env.registerUser(t, "bob", "password456")

	env.login(t, "alice", "password123")
	env.approveConsent(t, "yes")
	env.login(t, "bob", "password456")
	env.approveConsent(t, "yes")

	// With sessions active, /authorize offers the picker with both users.
	resp, err := env.browser.Get(env.authServer.URL + "/authorize?" + env.flowValues().Encode())
	require.NoError(t, err)
	page := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Choose an account")
	assert.Contains(t, page, "alice")
	assert.Contains(t, page, "bob")

	// Picking alice skips the password prompt and goes straight to consent.
	pickValues := env.flowValues()
	pickValues.Set("user_id", "1")
	resp, err = env.browser.Get(env.authServer.URL + "/select_account?" + pickValues.Encode())
	require.NoError(t, err)
	page = readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Authorize application")

	env.approveConsent(t, "yes")
	code, _, _ := env.recorded()
	require.NotEmpty(t, code)

	tok, err := env.oauthConfig().Exchange(context.Background(), code)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, env.authServer.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	infoResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.NewDecoder(infoResp.Body).Decode(&info))
	infoResp.Body.Close()
	assert.Equal(t, "alice", info["username"], "token belongs to the picked account")
}

func TestInvalidClientOnAuthorize(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)

	values := env.flowValues()
	values.Set("client_id", "unknown-client")
	resp, err := env.browser.Get(env.authServer.URL + "/authorize?" + values.Encode())
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "invalid_client")
}

func TestLoginFailureRerendersForm(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	form := env.flowValues()
	form.Set("username", "alice")
	form.Set("password", "wrong")
	resp, err := env.browser.PostForm(env.authServer.URL+"/authorize", form)
	require.NoError(t, err)
	page := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Invalid credentials")
	assert.Contains(t, page, "e2e-state", "state survives a failed attempt")
}

func TestDuplicateUsernameRejected(t *testing.T) {
	env := setupEnv(t)
	env.registerUser(t, "alice", "password123")

	resp, err := http.PostForm(env.authServer.URL+"/register_user", url.Values{
		"username": {"alice"},
		"password": {"different"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Username already exists")
}

func TestUserInfoRejectsBadTokens(t *testing.T) {
	env := setupEnv(t)

	resp, err := http.Get(env.authServer.URL + "/userinfo")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.authServer.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDashboardAndLogout(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")

	// An anonymous browser is sent to the login page from the root.
	resp, err := env.browser.Get(env.authServer.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Request.URL.Path, "/login"))
	resp.Body.Close()

	env.login(t, "alice", "password123")

	resp, err = env.browser.Get(env.authServer.URL + "/dashboard")
	require.NoError(t, err)
	page := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "alice")

	// Now the root recognises the session.
	resp, err = env.browser.Get(env.authServer.URL + "/")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Request.URL.Path, "/dashboard"))
	resp.Body.Close()

	// Logging out clears the cookie and the root forgets us again.
	resp, err = env.browser.PostForm(env.authServer.URL+"/logout", url.Values{})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = env.browser.Get(env.authServer.URL + "/")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.Request.URL.Path, "/login"))
	resp.Body.Close()
}

func TestSwitchAccount(t *testing.T) {
	env := setupEnv(t)
	env.registerClient(t)
	env.registerUser(t, "alice", "password123")
	env.registerUser(t, "bob", "password456")

	env.login(t, "alice", "password123")
	env.approveConsent(t, "yes")
	env.login(t, "bob", "password456")
	env.approveConsent(t, "yes")

	// The browser currently acts as bob; switch back to alice.
	resp, err := env.browser.PostForm(env.authServer.URL+"/switch_account", url.Values{
		"user_id": {"1"},
	})
	require.NoError(t, err)
	page := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "alice")
}
