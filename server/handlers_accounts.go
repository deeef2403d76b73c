package server

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/internal/autherr"
)

// RootHandler sends a recognised browser to the dashboard and everyone
// else to the login page.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessions.Current(r.Context(), s.currentSessionID(r)); err == nil {
			http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// LoginPageHandler renders the login form. Flow parameters in the query
// string are carried through hidden form fields so a login that is part of
// an OAuth redirect resumes the flow.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := flowParameters(r)
		data := map[string]any{
			"ClientID":    p.ClientID,
			"RedirectURI": p.RedirectURI,
			"Scope":       p.Scope,
			"State":       p.State,
		}
		s.renderPage(w, "login.html", data)
	}
}

// LogoutHandler deactivates a session. An explicit session_id form value
// signs out that session (dashboard row buttons); otherwise the browser's
// current session is ended and its cookie cleared.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		if target := r.FormValue("session_id"); target != "" {
			if err := s.sessions.Logout(r.Context(), target); err != nil && !autherr.Is(err, autherr.ErrNotFound) {
				log.Error().Err(err).Msg("failed to deactivate session")
				writeJSONError(w, http.StatusInternalServerError, "server_error")
				return
			}
			if target == s.currentSessionID(r) {
				s.ClearSessionCookie(w)
			}
			http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
			return
		}

		if current := s.currentSessionID(r); current != "" {
			if err := s.sessions.Logout(r.Context(), current); err != nil && !autherr.Is(err, autherr.ErrNotFound) {
				log.Error().Err(err).Msg("failed to deactivate session")
				writeJSONError(w, http.StatusInternalServerError, "server_error")
				return
			}
		}
		s.ClearSessionCookie(w)
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}

// SwitchAccountHandler repoints the browser at another user's identity:
// the current session ends and a fresh one is created for the target user.
func (s *Server) SwitchAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		userID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid user_id")
			return
		}

		next, err := s.sessions.Switch(r.Context(), s.currentSessionID(r), userID)
		if err != nil {
			if autherr.Is(err, autherr.ErrUnauthenticated) {
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}
			log.Error().Err(err).Msg("failed to switch account")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.SetSessionCookie(w, r, next.ID)
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

// DashboardHandler lists active sessions, registered clients and users.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := s.sessions.ListActive(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list active sessions")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}
		clientList, err := s.repos.Clients.ListClients(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list clients")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}
		userList, err := s.repos.Users.ListUsers(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("failed to list users")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}

		s.renderPage(w, "dashboard.html", map[string]any{
			"Sessions":         active,
			"Clients":          clientList,
			"Users":            userList,
			"CurrentSessionID": s.currentSessionID(r),
		})
	}
}
