package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/token"
	"github.com/mwufi/ara-auth/users"
)

// Template names for the pages the flow can render.
const (
	PageLogin         = "login.html"
	PageAccountPicker = "account_picker.html"
	PageConsent       = "consent.html"
)

const defaultAuthCodeExpiry = 10 * time.Minute

// AttemptPolicy decides whether another login attempt is allowed for an
// identity. The zero policy (nil) allows everything; deployments plug in
// their own thresholds.
type AttemptPolicy interface {
	Allow(identity string) bool
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Clients clients.Repo
	Users   users.Repo
	Codes   token.CodeRepo
}

// Service drives the authorization flow: authorize, login or account pick,
// consent, code issuance. Every operation returns a tagged Result that the
// HTTP layer translates to a wire response.
type Service struct {
	repos          Repos
	sessionManager *sessions.Manager
	tokenManager   *token.Manager
	loginPolicy    AttemptPolicy
	authCodeExpiry time.Duration
	nowTime        func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithLoginPolicy installs a login attempt policy hook.
func WithLoginPolicy(policy AttemptPolicy) ServiceOption {
	return func(s *Service) {
		s.loginPolicy = policy
	}
}

// WithAuthCodeExpiry overrides the authorization-code validity window.
func WithAuthCodeExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.authCodeExpiry = expiry
	}
}

func NewService(repos Repos, sessionManager *sessions.Manager, tokenManager *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Clients == nil {
		return nil, errors.New("[NewService] Clients repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Codes == nil {
		return nil, errors.New("[NewService] Codes repo is required")
	}
	if sessionManager == nil {
		return nil, errors.New("[NewService] session manager is required")
	}
	if tokenManager == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	service := &Service{
		repos:          repos,
		sessionManager: sessionManager,
		tokenManager:   tokenManager,
		authCodeExpiry: defaultAuthCodeExpiry,
		nowTime:        time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Authorize begins the flow: it validates the client and the redirect URI,
// then routes the browser to the login page (no active sessions) or the
// account picker (one or more).
func (s *Service) Authorize(ctx context.Context, p Parameters) Result {
	if err := s.validateClient(ctx, p); err != nil {
		return ErrorResult(err)
	}

	active, err := s.sessionManager.ListActive(ctx)
	if err != nil {
		return ErrorResult(errors.Wrap(err, "[Authorize] ListActive"))
	}

	if len(active) == 0 {
		return PageResult(PageLogin, p.templateData())
	}

	data := p.templateData()
	data["Sessions"] = active
	return PageResult(PageAccountPicker, data)
}

// Login verifies submitted credentials. Failure re-renders the login page
// with an error flag; success creates a session and moves to consent when
// the login is part of an OAuth flow, or to the dashboard otherwise.
func (s *Service) Login(ctx context.Context, p Parameters, username, password string) Result {
	if s.loginPolicy != nil && !s.loginPolicy.Allow(username) {
		log.Warn().Str("username", username).Msg("login attempt rate limited")
		return s.loginFailed(p, "Too many attempts, try again later")
	}

	user, err := s.repos.Users.GetUserByUsername(ctx, username)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			log.Info().Str("username", username).Msg("login attempt for unknown user")
			return s.loginFailed(p, "Invalid credentials")
		}
		return ErrorResult(errors.Wrap(err, "[Login] GetUserByUsername"))
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		log.Info().Str("username", username).Msg("login attempt with bad password")
		return s.loginFailed(p, "Invalid credentials")
	}

	session, err := s.sessionManager.Login(ctx, user.ID, p.ClientID)
	if err != nil {
		return ErrorResult(errors.Wrap(err, "[Login] sessionManager.Login"))
	}
	log.Info().Str("username", username).Str("session_id", session.ID).Msg("user logged in")

	if p.ClientID != "" && p.RedirectURI != "" {
		data := p.templateData()
		data["User"] = user
		return PageResult(PageConsent, data).WithSession(session.ID)
	}
	return RedirectResult("/dashboard", http.StatusSeeOther).WithSession(session.ID)
}

// SelectAccount handles the account-picker choice: the browser adopts the
// chosen user's active session and moves to consent. A user without an
// active session falls back to the login page.
func (s *Service) SelectAccount(ctx context.Context, p Parameters, userID int64) Result {
	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return ErrorResult(autherr.Wrapf(autherr.ErrNotFound, "user not found"))
		}
		return ErrorResult(errors.Wrap(err, "[SelectAccount] GetUserByID"))
	}

	session, err := s.sessionManager.ActiveForUser(ctx, user.ID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			// "Use a different account": session is gone, ask for credentials.
			return PageResult(PageLogin, p.templateData())
		}
		return ErrorResult(errors.Wrap(err, "[SelectAccount] ActiveForUser"))
	}

	data := p.templateData()
	data["User"] = user
	return PageResult(PageConsent, data).WithSession(session.ID)
}

// Consent records the user's approve/deny decision. Approval persists a
// one-time authorization code and redirects to the client with
// code and state; denial redirects with error=access_denied. The state
// parameter is echoed verbatim on both paths.
func (s *Service) Consent(ctx context.Context, sessionID string, p Parameters, approved bool) Result {
	session, err := s.sessionManager.Current(ctx, sessionID)
	if err != nil {
		if autherr.Is(err, autherr.ErrUnauthenticated) {
			return ErrorResult(autherr.Wrapf(autherr.ErrUnauthenticated, "not logged in"))
		}
		return ErrorResult(errors.Wrap(err, "[Consent] sessionManager.Current"))
	}

	user, err := s.repos.Users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return ErrorResult(autherr.Wrapf(autherr.ErrNotFound, "user not found"))
		}
		return ErrorResult(errors.Wrap(err, "[Consent] GetUserByID"))
	}

	// Re-check the client so a tampered consent form cannot redirect the
	// browser to an unregistered URI.
	if err := s.validateClient(ctx, p); err != nil {
		return ErrorResult(err)
	}

	if !approved {
		log.Info().Str("client_id", p.ClientID).Int64("user_id", user.ID).Msg("consent denied")
		return RedirectResult(p.errorRedirect("access_denied"), http.StatusFound)
	}

	code := &token.AuthorizationCode{
		Code:      uuid.New().String(),
		ClientID:  p.ClientID,
		UserID:    user.ID,
		Scope:     p.Scope,
		ExpiresAt: s.nowTime().Add(s.authCodeExpiry),
	}
	if err := s.repos.Codes.CreateAuthCode(ctx, code); err != nil {
		return ErrorResult(errors.Wrap(err, "[Consent] Codes.CreateAuthCode"))
	}

	log.Info().Str("client_id", p.ClientID).Int64("user_id", user.ID).Msg("authorization code issued")
	return RedirectResult(p.successRedirect(code.Code), http.StatusFound)
}

// UserInfo validates a bearer token and returns the subject's identity.
func (s *Service) UserInfo(ctx context.Context, rawToken string) Result {
	userID, _, err := s.tokenManager.VerifyAccessToken(rawToken)
	if err != nil {
		return ErrorResult(autherr.ErrUnauthenticated)
	}

	user, err := s.repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return ErrorResult(autherr.Wrapf(autherr.ErrNotFound, "user not found"))
		}
		return ErrorResult(errors.Wrap(err, "[UserInfo] GetUserByID"))
	}

	return JSONResult(map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

func (s *Service) validateClient(ctx context.Context, p Parameters) error {
	client, err := s.repos.Clients.GetClient(ctx, p.ClientID)
	if err != nil {
		if autherr.Is(err, autherr.ErrNotFound) {
			return autherr.Wrapf(autherr.ErrInvalidClient, "unknown client %q", p.ClientID)
		}
		return errors.Wrap(err, "[validateClient] Clients.GetClient")
	}
	if !client.RedirectURIMatches(p.RedirectURI) {
		return autherr.Wrapf(autherr.ErrInvalidClient, "redirect_uri mismatch")
	}
	return nil
}

func (s *Service) loginFailed(p Parameters, message string) Result {
	data := p.templateData()
	data["Error"] = message
	return PageResult(PageLogin, data)
}
