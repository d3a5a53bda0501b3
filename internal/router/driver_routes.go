package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterDriver registers the profile, booking, slot map and wallet
// routes.  g must already carry JWTAuth.
func RegisterDriver(g *echo.Group, h Handlers) {
	u := g.Group("/user")
	u.GET("/profile", h.User.Profile)
	u.PUT("/location", h.User.UpdateLocation)
	u.GET("/vehicles", h.User.ListVehicles)
	u.POST("/vehicles", h.User.AddVehicle)
	u.PUT("/vehicles/:id/primary", h.User.SetPrimary)
	g.POST("/vehicles/register", h.User.AddVehicle)

	b := g.Group("/bookings")
	b.POST("/create", h.Booking.Create)
	b.GET("/active", h.Booking.Active)
	b.GET("/list/active", h.Booking.ListActive)
	b.GET("/list/history", h.Booking.History)
	b.GET("/:id", h.Booking.Get)
	b.POST("/:id/arrive", h.Booking.Arrive)
	b.POST("/:id/end", h.Booking.End)

	s := g.Group("/slots")
	s.GET("/all", h.Slot.All, h.SlotsAll...)
	s.GET("/area/:id", h.Slot.ByArea)
	s.GET("/:id/details", h.Slot.Details)

	w := g.Group("/wallet")
	w.GET("", h.Wallet.Get)
	w.POST("/topup", h.Wallet.TopUp)
	w.GET("/transactions", h.Wallet.Transactions)
}
