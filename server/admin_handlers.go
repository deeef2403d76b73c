package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/autherr"
	"github.com/mwufi/ara-auth/users"
)

// RegisterClientHandler provisions a new OAuth client. The generated
// secret is returned exactly once, in this response.
func (s *Server) RegisterClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		name := r.FormValue("name")
		redirectURI := r.FormValue("redirect_uri")
		if redirectURI == "" {
			writeJSONError(w, http.StatusBadRequest, "redirect_uri is required")
			return
		}

		client := clients.New(name, redirectURI)
		if err := s.repos.Clients.CreateClient(r.Context(), client); err != nil {
			log.Error().Err(err).Msg("failed to create client")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}

		log.Info().Str("client_id", client.ID).Str("name", name).Msg("client registered")
		writeJSON(w, http.StatusOK, map[string]string{
			"client_id":     client.ID,
			"client_secret": client.Secret,
		})
	}
}

// RegisterUserHandler creates a user account. The display name defaults to
// the username when absent.
func (s *Server) RegisterUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		username := r.FormValue("username")
		password := r.FormValue("password")
		if username == "" || password == "" {
			writeJSONError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		displayName := r.FormValue("display_name")
		if displayName == "" {
			displayName = username
		}

		hash, err := users.HashPassword(password)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash password")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}

		user := &users.User{
			Username:     username,
			PasswordHash: hash,
			DisplayName:  displayName,
			Email:        r.FormValue("email"),
			DateJoined:   time.Now(),
		}
		if err := s.repos.Users.CreateUser(r.Context(), user); err != nil {
			if autherr.Is(err, autherr.ErrUsernameExists) {
				writeJSONError(w, http.StatusBadRequest, "Username already exists")
				return
			}
			log.Error().Err(err).Msg("failed to create user")
			writeJSONError(w, http.StatusInternalServerError, "server_error")
			return
		}

		log.Info().Str("username", username).Int64("user_id", user.ID).Msg("user registered")
		writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
	}
}
