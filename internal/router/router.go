package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/wishly/internal/handler"    // import the handlers that implement the API
	"github.com/iliyamo/wishly/internal/middleware" // import middleware for JWT authentication
)

// APIPrefix is the path prefix of every API route.
const APIPrefix = "/api/v1"

// RegisterRoutes registers the operational endpoints: liveness, readiness
// and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, metrics http.Handler) {
	// Liveness for load balancers; does not touch dependencies.
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the account endpoints.  Register, login, refresh
// and logout need no session; /me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group(APIPrefix + "/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh token in the body or a bearer token.
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	e.GET(APIPrefix+"/me", a.Me, middleware.JWTAuth(jwtSecret))
}
