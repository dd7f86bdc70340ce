package server

const (
	RouteRegister     = "/register"
	RouteLogin        = "/login"
	RouteRefreshToken = "/refresh-token"
	RouteLogout       = "/logout"
	RouteMe           = "/me"
	RouteHealthz      = "/healthz"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
}
