package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/token"
)

// flowParameters extracts the authorization-request parameters from either
// the query string (GET) or the form body (POST after ParseForm).
func flowParameters(r *http.Request) auth.Parameters {
	return auth.Parameters{
		ClientID:     r.FormValue("client_id"),
		RedirectURI:  r.FormValue("redirect_uri"),
		Scope:        r.FormValue("scope"),
		State:        r.FormValue("state"),
		ResponseType: r.FormValue("response_type"),
	}
}

// AuthorizeHandler is the OAuth2 authorization endpoint. It sends the
// browser to the login page or the account picker depending on whether any
// sessions are active.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := s.flow.Authorize(r.Context(), flowParameters(r))
		s.renderResult(w, r, result)
	}
}

// LoginSubmissionHandler verifies submitted credentials. It serves both the
// OAuth flow (POST /authorize with flow parameters) and the standalone
// login page (POST /login without them).
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		result := s.flow.Login(r.Context(), flowParameters(r), r.FormValue("username"), r.FormValue("password"))
		s.renderResult(w, r, result)
	}
}

// SelectAccountHandler handles the account-picker choice and moves the
// browser on to consent as the chosen user.
func (s *Server) SelectAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		result := s.flow.SelectAccount(r.Context(), flowParameters(r), userID)
		s.renderResult(w, r, result)
	}
}

// ConsentHandler records the approve/deny decision. The acting user comes
// from the session cookie, never from the form.
func (s *Server) ConsentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		approved := r.FormValue("consent") == "yes"
		result := s.flow.Consent(r.Context(), s.currentSessionID(r), flowParameters(r), approved)
		s.renderResult(w, r, result)
	}
}

// TokenHandler is the OAuth2 token endpoint: authorization_code and
// refresh_token grants, client credentials in the POST body.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}

		req := token.TokenRequest{
			GrantType:    r.FormValue("grant_type"),
			Code:         r.FormValue("code"),
			RefreshToken: r.FormValue("refresh_token"),
			RedirectURI:  r.FormValue("redirect_uri"),
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
		}

		resp, err := s.tokens.Exchange(r.Context(), req)
		if err != nil {
			switch {
			case autherr.Is(err, autherr.ErrInvalidClient):
				writeJSONError(w, http.StatusBadRequest, "invalid_client")
			case autherr.Is(err, autherr.ErrInvalidGrant):
				writeJSONError(w, http.StatusBadRequest, "invalid_grant")
			case autherr.Is(err, autherr.ErrUnsupportedGrantType):
				writeJSONError(w, http.StatusBadRequest, "unsupported_grant_type")
			default:
				log.Error().Err(err).Msg("token exchange failed")
				writeJSONError(w, http.StatusInternalServerError, "server_error")
			}
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}

// UserInfoHandler introspects a bearer token and returns the subject.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		rawToken, found := strings.CutPrefix(header, "Bearer ")
		if !found || rawToken == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		result := s.flow.UserInfo(r.Context(), rawToken)
		s.renderResult(w, r, result)
	}
}
