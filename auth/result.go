package auth

import "net/http"

// ResultKind discriminates the shapes a flow operation can produce. The
// HTTP layer translates each kind onto the wire; the flow controller never
// touches a ResponseWriter.
type ResultKind int

const (
	KindPage ResultKind = iota
	KindRedirect
	KindJSON
	KindError
)

// Result is the tagged outcome of a flow-controller operation: a page to
// render, a redirect to issue, a JSON body, or a protocol error.
//
// SessionID, when set, tells the boundary to point the browser's session
// cookie at that session. ClearCookie tells it to drop the cookie.
type Result struct {
	Kind ResultKind

	// KindPage
	Page string
	Data map[string]any

	// KindRedirect
	RedirectURL    string
	RedirectStatus int

	// KindJSON
	Body any

	// KindError
	Err error

	SessionID   string
	ClearCookie bool
}

func PageResult(page string, data map[string]any) Result {
	return Result{Kind: KindPage, Page: page, Data: data}
}

func RedirectResult(url string, status int) Result {
	if status == 0 {
		status = http.StatusFound
	}
	return Result{Kind: KindRedirect, RedirectURL: url, RedirectStatus: status}
}

func JSONResult(body any) Result {
	return Result{Kind: KindJSON, Body: body}
}

func ErrorResult(err error) Result {
	return Result{Kind: KindError, Err: err}
}

// WithSession marks the result as carrying a new browser session identity.
func (r Result) WithSession(sessionID string) Result {
	r.SessionID = sessionID
	return r
}
