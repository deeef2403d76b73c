package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Administrative registration
	RouteRegisterClient = "/register_client"
	RouteRegisterUser   = "/register_user"

	// OAuth2 flow
	RouteAuthorize     = "/authorize"
	RouteSelectAccount = "/select_account"
	RouteConsent       = "/consent"
	RouteToken         = "/token"
	RouteUserInfo      = "/userinfo"

	// Session / account management
	RouteLogin         = "/login"
	RouteLogout        = "/logout"
	RouteSwitchAccount = "/switch_account"
	RouteDashboard     = "/dashboard"
)
