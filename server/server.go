package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mwufi/ara-auth/auth"
	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/internal/config"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/token"
	"github.com/mwufi/ara-auth/users"
)

// Repos holds the repository dependencies the handlers read directly
// (dashboard listings and registration).
type Repos struct {
	Clients clients.Repo
	Users   users.Repo
}

type Server struct {
	env          string // Environment (e.g., "DEV", "production")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	flow         *auth.Service
	tokens       *token.Manager
	sessions     *sessions.Manager
	repos        Repos
	cookieSecret []byte
}

func New(cfg config.Config, repos Repos, flow *auth.Service, tokenManager *token.Manager, sessionManager *sessions.Manager) (*Server, error) {
	if flow == nil {
		return nil, fmt.Errorf("[Server New] flow service is required")
	}
	if tokenManager == nil {
		return nil, fmt.Errorf("[Server New] token manager is required")
	}
	if sessionManager == nil {
		return nil, fmt.Errorf("[Server New] session manager is required")
	}
	if repos.Clients == nil || repos.Users == nil {
		return nil, fmt.Errorf("[Server New] repos are required")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       cfg,
		flow:         flow,
		tokens:       tokenManager,
		sessions:     sessionManager,
		repos:        repos,
		cookieSecret: []byte(cfg.GetCookieSigningSecret()),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
