package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /{$}", ChainMiddleware(s.RootHandler(), s.baseMiddleware()...))

	// Administrative registration
	s.RegisterRouteFunc("POST "+RouteRegisterClient, ChainMiddleware(s.RegisterClientHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRegisterUser, ChainMiddleware(s.RegisterUserHandler(), s.baseMiddleware()...))

	// OAuth2 authorization flow
	s.RegisterRouteFunc("GET "+RouteAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthorize, ChainMiddleware(s.LoginSubmissionHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteSelectAccount, ChainMiddleware(s.SelectAccountHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteConsent, ChainMiddleware(s.ConsentHandler(), s.baseMiddleware()...))

	// Token endpoint and protected resources
	s.RegisterRouteFunc("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUserInfo, ChainMiddleware(s.UserInfoHandler(), s.baseMiddleware()...))

	// Session / account management
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteSwitchAccount, ChainMiddleware(s.SwitchAccountHandler(), s.baseMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.baseMiddleware()...))
}
