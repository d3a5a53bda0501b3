package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/parkease/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/parkease/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// Handlers is everything the router mounts.
type Handlers struct {
	Health   echo.HandlerFunc
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Booking  *handler.BookingHandler
	Slot     *handler.SlotHandler
	Wallet   *handler.WalletHandler
	Owner    *handler.OwnerHandler
	Staff    *handler.StaffHandler
	Push     *handler.PushHandler
	JWT      string                // access token secret
	API      []echo.MiddlewareFunc // applied to the whole /api group, e.g. rate limiting
	SlotsAll []echo.MiddlewareFunc // applied to GET /api/slots/all, e.g. response caching
}

// Register mounts every route on e.  /healthz and /ws sit outside /api;
// /ws authenticates itself from the token query parameter.
func Register(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health)
	e.GET("/ws", h.Push.Connect)

	api := e.Group("/api", h.API...)
	RegisterAuth(api, h.Auth)

	authed := api.Group("", middleware.JWTAuth(h.JWT))
	RegisterDriver(authed, h)
	RegisterOwner(authed, h.Owner)
	RegisterStaff(authed, h.Staff)
}

// RegisterAuth registers signup and the token endpoints.  Logout
// authenticates from either the access token or the refresh token in the
// body.
func RegisterAuth(g *echo.Group, a *handler.AuthHandler) {
	auth := g.Group("/auth")
	auth.POST("/register", a.Register)
	auth.POST("/register-official", a.RegisterOfficial)
	auth.POST("/login", a.Login)
	auth.POST("/refresh", a.Refresh)
	auth.POST("/logout", a.Logout)
}
