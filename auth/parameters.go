package auth

import "net/url"

// Parameters are the OAuth2 authorization-request parameters carried
// through every step of the flow. State is opaque to the server and is
// echoed verbatim in every redirect so the client can correlate the
// response and detect CSRF. Scope is an opaque pass-through string.
type Parameters struct {
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
	ResponseType string
}

// templateData returns the parameters as template fields, so every page
// in the flow can carry them forward through its form.
func (p Parameters) templateData() map[string]any {
	return map[string]any{
		"ClientID":    p.ClientID,
		"RedirectURI": p.RedirectURI,
		"Scope":       p.Scope,
		"State":       p.State,
	}
}

// successRedirect builds the redirect_uri?code=...&state=... callback URL.
func (p Parameters) successRedirect(code string) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("state", p.State)
	return p.RedirectURI + "?" + q.Encode()
}

// errorRedirect builds the redirect_uri?error=...&state=... callback URL.
func (p Parameters) errorRedirect(oauthError string) string {
	q := url.Values{}
	q.Set("error", oauthError)
	q.Set("state", p.State)
	return p.RedirectURI + "?" + q.Encode()
}
