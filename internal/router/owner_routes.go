package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parkease/internal/handler"    // owner handlers
	"github.com/iliyamo/parkease/internal/middleware" // role middleware
	"github.com/iliyamo/parkease/internal/model"
)

// RegisterOwner registers area owner routes under /area-owner and the admin
// summary under /admin.  g must already carry JWTAuth.
func RegisterOwner(g *echo.Group, o *handler.OwnerHandler) {
	og := g.Group("/area-owner", middleware.RequireRole(model.RoleAreaOwner, model.RoleAdmin))

	// ---- Areas ----
	og.POST("/create-area", o.CreateArea)
	og.GET("/my-areas", o.MyAreas)

	// ---- Slots ----
	og.GET("/area/:id/slots", o.AreaSlots)
	og.POST("/area/:id/slots/create", o.CreateSlot)
	og.PUT("/area/:id/slots/update", o.UpdateSlots)

	// ---- Analytics ----
	og.GET("/area/:id/stats", o.Stats)
	og.GET("/area/:id/analytics/slots", o.SlotAnalytics)
	og.GET("/area/:id/analytics/charts", o.Charts)
	og.GET("/area/:id/logs", o.Logs)

	ag := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	ag.GET("/analytics/all-areas", o.AllAreas)
	ag.GET("/analytics/area/:id/charts", o.Charts)
}
