package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
)

// StaffStore is the account management surface of *repository.UserRepo.
type StaffStore interface {
	Create(ctx context.Context, u repository.NewUser, cost int) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	ListPending(ctx context.Context) ([]model.User, error)
	ListStaff(ctx context.Context) ([]model.User, error)
	ListGuards(ctx context.Context, areaID uint64) ([]model.User, error)
	Activate(ctx context.Context, id uint64) error
	Deactivate(ctx context.Context, id uint64) error
}

// StaffHandler serves official approval, staff creation and guard
// recruitment.
type StaffHandler struct {
	Users      StaffStore
	Areas      AreaStore
	Slots      SlotStore
	BcryptCost int
	Log        logrus.FieldLogger
}

func NewStaffHandler(u StaffStore, a AreaStore, s SlotStore, bcryptCost int, log logrus.FieldLogger) *StaffHandler {
	return &StaffHandler{Users: u, Areas: a, Slots: s, BcryptCost: bcryptCost, Log: log}
}

// staffView is the row shape the dashboards list.
type staffView struct {
	UserID    uint64    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	AreaID    *uint64   `json:"areaId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func staffViews(us []model.User) []staffView {
	out := make([]staffView, 0, len(us))
	for _, u := range us {
		out = append(out, staffView{
			UserID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role,
			IsActive: u.IsActive, AreaID: u.AreaID, CreatedAt: u.CreatedAt,
		})
	}
	return out
}

// PendingApprovals lists official signups waiting for an admin.
func (h *StaffHandler) PendingApprovals(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	us, err := h.Users.ListPending(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, staffViews(us))
}

// Approve activates a pending official account.
func (h *StaffHandler) Approve(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Activate(ctx, id); err != nil {
		return fail(c, h.Log, err)
	}
	admin, _ := middleware.UserID(c)
	h.Log.WithFields(logrus.Fields{"user_id": id, "approved_by": admin}).Info("official account approved")
	return c.JSON(http.StatusOK, echo.Map{"message": "user approved", "userId": id})
}

// CreateStaff creates an active AREA_OWNER or ADMIN account.
func (h *StaffHandler) CreateStaff(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}
	role, ok := model.OfficialRole(req.Role)
	if !ok {
		return badRequest(c, "role must be AREA_OWNER or ADMIN")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	uid, err := h.Users.Create(ctx, req.user(role), h.BcryptCost)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "staff account created", "userId": uid, "role": role})
}

// AllStaff lists every non-driver account.
func (h *StaffHandler) AllStaff(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	us, err := h.Users.ListStaff(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, staffViews(us))
}

// AreaGuards lists the guards of an owned area.
func (h *StaffHandler) AreaGuards(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid area id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := checkArea(ctx, c, h.Areas, uid, id); err != nil {
		return fail(c, h.Log, err)
	}
	us, err := h.Users.ListGuards(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, staffViews(us))
}

type recruitReq struct {
	AreaID uint64 `json:"areaId"`
	registerReq
}

// RecruitGuard creates an active guard account assigned to an owned area.
func (h *StaffHandler) RecruitGuard(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req recruitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.AreaID == 0 {
		return badRequest(c, "areaId required")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := checkArea(ctx, c, h.Areas, uid, req.AreaID); err != nil {
		return fail(c, h.Log, err)
	}
	nu := req.user(model.RoleGuard)
	nu.AreaID = req.AreaID
	gid, err := h.Users.Create(ctx, nu, h.BcryptCost)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": gid, "area_id": req.AreaID, "recruited_by": uid}).Info("guard recruited")
	return c.JSON(http.StatusCreated, echo.Map{"message": "guard recruited", "userId": gid, "areaId": req.AreaID})
}

// FireGuard deactivates a guard working at one of the caller's areas.
func (h *StaffHandler) FireGuard(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	gid, ok := idParam(c, "uid")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	g, err := h.Users.GetByID(ctx, gid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if g.Role != model.RoleGuard || !g.IsActive || g.AreaID == nil {
		return fail(c, h.Log, repository.ErrNotFound)
	}
	if err := checkArea(ctx, c, h.Areas, uid, *g.AreaID); err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Users.Deactivate(ctx, gid); err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": gid, "area_id": *g.AreaID, "fired_by": uid}).Info("guard fired")
	return c.JSON(http.StatusOK, echo.Map{"message": "guard fired", "userId": gid})
}

// GuardArea returns the area a guard is assigned to with its slots.
func (h *StaffHandler) GuardArea(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	g, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if !g.IsActive || g.AreaID == nil {
		return forbidden(c, "no area assigned")
	}
	a, err := h.Areas.Get(ctx, *g.AreaID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	slots, err := h.Slots.ListByArea(ctx, a.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return c.JSON(http.StatusOK, echo.Map{"area": a, "slots": slots})
}
