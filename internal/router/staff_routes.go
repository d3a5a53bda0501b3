package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parkease/internal/handler"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
)

// RegisterStaff registers account approval under /admin, guard management
// under /area-owner and the guard's own view under /guard.  g must already
// carry JWTAuth.
func RegisterStaff(g *echo.Group, s *handler.StaffHandler) {
	ag := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	ag.GET("/pending-approvals", s.PendingApprovals)
	ag.PUT("/approve/:id", s.Approve)
	ag.POST("/create-staff", s.CreateStaff)
	ag.GET("/get-all-staff", s.AllStaff)
	ag.GET("/get-all-staff/", s.AllStaff)

	og := g.Group("/area-owner", middleware.RequireRole(model.RoleAreaOwner, model.RoleAdmin))
	og.GET("/area/:id/guards", s.AreaGuards)
	og.POST("/recruit-guard", s.RecruitGuard)
	og.POST("/fire-guard/:uid", s.FireGuard)

	gg := g.Group("/guard", middleware.RequireRole(model.RoleGuard))
	gg.GET("/area", s.GuardArea)
}
