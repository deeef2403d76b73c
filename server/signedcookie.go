package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// sessionCookieName is the single piece of browser-held state: a signed
// pointer at the current session row. Credentials never go in the cookie.
const sessionCookieName = "ara_session"

// signSessionID produces "<session-id>.<base64url hmac>".
func (s *Server) signSessionID(sessionID string) string {
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(sessionID))
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifySignedSessionID returns the session id when the signature checks
// out, or "" for anything malformed or tampered.
func (s *Server) verifySignedSessionID(value string) string {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return ""
	}
	sessionID, signature := value[:idx], value[idx+1:]

	expected, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return ""
	}
	mac := hmac.New(sha256.New, s.cookieSecret)
	mac.Write([]byte(sessionID))
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ""
	}
	return sessionID
}

// SetSessionCookie points the browser at a session.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.signSessionID(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie drops the browser's session identity.
func (s *Server) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// currentSessionID reads the browser's session pointer, if any. An absent
// or tampered cookie resolves to "".
func (s *Server) currentSessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return s.verifySignedSessionID(cookie.Value)
}
