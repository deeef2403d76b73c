package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/internal/autherr"
)

// renderResult translates a flow result into an HTTP response. The flow
// layer never touches the ResponseWriter, so cookie handling and template
// rendering stay in one place.
func (s *Server) renderResult(w http.ResponseWriter, r *http.Request, result auth.Result) {
	if result.SessionID != "" {
		s.SetSessionCookie(w, r, result.SessionID)
	}
	if result.ClearCookie {
		s.ClearSessionCookie(w)
	}

	switch result.Kind {
	case auth.KindPage:
		s.renderPage(w, result.Page, result.Data)
	case auth.KindRedirect:
		status := result.RedirectStatus
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, result.RedirectURL, status)
	case auth.KindJSON:
		writeJSON(w, http.StatusOK, result.Body)
	case auth.KindError:
		s.renderError(w, result.Err)
	default:
		log.Error().Int("kind", int(result.Kind)).Msg("unhandled flow result kind")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, page string, data map[string]any) {
	tmpl, err := ParseTemplate(page)
	if err != nil {
		log.Error().Err(err).Str("template", page).Msg("failed to parse template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", page).Msg("failed to render template")
	}
}

func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case autherr.Is(err, autherr.ErrInvalidClient):
		writeJSONError(w, http.StatusBadRequest, "invalid_client")
	case autherr.Is(err, autherr.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
	case autherr.Is(err, autherr.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found")
	default:
		log.Error().Err(err).Msg("flow returned internal error")
		writeJSONError(w, http.StatusInternalServerError, "server_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
