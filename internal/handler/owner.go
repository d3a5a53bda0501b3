package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/analytics"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
)

// Analytics answers the dashboard queries.
type Analytics interface {
	Stats(ctx context.Context, areaID uint64) (analytics.Stats, error)
	Slots(ctx context.Context, areaID uint64) (analytics.SlotAnalytics, error)
	Charts(ctx context.Context, areaID uint64, from, to time.Time) (analytics.Charts, error)
	Logs(ctx context.Context, areaID uint64) ([]analytics.LogEntry, error)
	AllAreas(ctx context.Context, from, to time.Time) ([]analytics.AreaSummary, error)
}

// OwnerHandler serves area owners.  Every per-area route checks that the
// caller owns the area; admins may read any area.
type OwnerHandler struct {
	Areas     AreaStore
	Slots     SlotStore
	Analytics Analytics
	Log       logrus.FieldLogger
	// Loc reads date-only range parameters; nil means UTC.
	Loc *time.Location
}

func NewOwnerHandler(a AreaStore, s SlotStore, an Analytics, log logrus.FieldLogger) *OwnerHandler {
	return &OwnerHandler{Areas: a, Slots: s, Analytics: an, Log: log}
}

type createAreaReq struct {
	Name           string      `json:"name"`
	Address        string      `json:"address"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	CapacitySmall  int         `json:"capacitySmall"`
	CapacityMedium int         `json:"capacityMedium"`
	CapacityLarge  int         `json:"capacityLarge"`
	BaseRateSmall  model.Money `json:"baseRateSmall"`
	BaseRateMedium model.Money `json:"baseRateMedium"`
	BaseRateLarge  model.Money `json:"baseRateLarge"`
}

// maxCapacity bounds the slots generated per vehicle type.
const maxCapacity = 1000

// CreateArea creates an area and generates its slots from the per-type
// capacities.
func (h *OwnerHandler) CreateArea(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req createAreaReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return badRequest(c, "name required")
	}
	caps := map[model.VehicleType]int{
		model.VehicleSmall: req.CapacitySmall, model.VehicleMedium: req.CapacityMedium, model.VehicleLarge: req.CapacityLarge,
	}
	rates := map[model.VehicleType]model.Money{
		model.VehicleSmall: req.BaseRateSmall, model.VehicleMedium: req.BaseRateMedium, model.VehicleLarge: req.BaseRateLarge,
	}
	total := 0
	for _, t := range model.VehicleTypes {
		if caps[t] < 0 || caps[t] > maxCapacity {
			return badRequest(c, "capacity out of range")
		}
		if caps[t] > 0 && rates[t] <= 0 {
			return badRequest(c, "base rate required for every type with capacity")
		}
		if rates[t] < 0 {
			return badRequest(c, "base rate must not be negative")
		}
		total += caps[t]
	}
	if total == 0 {
		return badRequest(c, "area needs at least one slot")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	a := model.Area{
		OwnerID: uid, Name: req.Name, Address: req.Address, Lat: req.Latitude, Lon: req.Longitude,
		CapacityByType: caps, BaseRateByType: rates,
	}
	n, err := h.Areas.Create(ctx, &a)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "area created", "area": a, "areaId": a.ID, "slotsCreated": n})
}

// MyAreas lists the caller's areas.
func (h *OwnerHandler) MyAreas(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	areas, err := h.Areas.ListByOwner(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if areas == nil {
		areas = []model.AreaSummary{}
	}
	return c.JSON(http.StatusOK, areas)
}

// ownedArea parses the area id and checks ownership.  On failure the
// response has been written and ok is false.
func (h *OwnerHandler) ownedArea(ctx context.Context, c echo.Context) (id uint64, ok bool, err error) {
	uid, authed := middleware.UserID(c)
	if !authed {
		return 0, false, unauthorized(c, "unauthorized")
	}
	id, valid := idParam(c, "id")
	if !valid {
		return 0, false, badRequest(c, "invalid area id")
	}
	if err := checkArea(ctx, c, h.Areas, uid, id); err != nil {
		return 0, false, fail(c, h.Log, err)
	}
	return id, true, nil
}

// checkArea lets admins at any existing area and owners at their own.
func checkArea(ctx context.Context, c echo.Context, areas AreaStore, uid, areaID uint64) error {
	if middleware.Role(c) == model.RoleAdmin {
		_, err := areas.Get(ctx, areaID)
		return err
	}
	return areas.CheckOwner(ctx, areaID, uid)
}

// AreaSlots lists the slots of an owned area.
func (h *OwnerHandler) AreaSlots(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, ok, err := h.ownedArea(ctx, c)
	if !ok {
		return err
	}
	slots, err := h.Slots.ListByArea(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return c.JSON(http.StatusOK, slots)
}

type createSlotReq struct {
	SlotNumber           string      `json:"slotNumber"`
	Floor                int         `json:"floor"`
	SupportedVehicleType string      `json:"supportedVehicleType"`
	BaseHourlyRate       model.Money `json:"baseHourlyRate"`
}

// CreateSlot adds a single slot to an owned area.
func (h *OwnerHandler) CreateSlot(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, ok, err := h.ownedArea(ctx, c)
	if !ok {
		return err
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	vt, valid := model.ParseVehicleType(req.SupportedVehicleType)
	if !valid {
		return badRequest(c, "supportedVehicleType must be SMALL, MEDIUM or LARGE")
	}
	if strings.TrimSpace(req.SlotNumber) == "" || req.BaseHourlyRate <= 0 {
		return badRequest(c, "slotNumber and a positive baseHourlyRate required")
	}
	s := model.Slot{
		AreaID: id, SlotNumber: req.SlotNumber, Floor: req.Floor,
		SupportedVehicleType: vt, BaseHourlyRate: req.BaseHourlyRate,
	}
	if err := h.Slots.Create(ctx, &s); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "slot created", "slot": s})
}

// UpdateSlots applies a batch of slot edits atomically.
func (h *OwnerHandler) UpdateSlots(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, ok, err := h.ownedArea(ctx, c)
	if !ok {
		return err
	}
	var items []repository.SlotUpdate
	if err := c.Bind(&items); err != nil || len(items) == 0 {
		return badRequest(c, "expected a non-empty array of slot updates")
	}
	for _, it := range items {
		if it.SlotID == 0 {
			return badRequest(c, "slotId required")
		}
		if it.HourlyRate != nil && *it.HourlyRate <= 0 {
			return badRequest(c, "hourlyRate must be positive")
		}
		if it.Status != nil {
			st, valid := model.ParseSlotStatus(string(*it.Status))
			if !valid {
				return badRequest(c, "unknown slot status")
			}
			*it.Status = st
		}
	}
	n, err := h.Slots.UpdateBatch(ctx, id, items)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "slots updated", "updated": n})
}

// Stats returns the headline numbers for an owned area.
func (h *OwnerHandler) Stats(c echo.Context) error {
	return h.areaQuery(c, func(ctx context.Context, id uint64) (interface{}, error) {
		return h.Analytics.Stats(ctx, id)
	})
}

// SlotAnalytics returns the slot leaderboards.
func (h *OwnerHandler) SlotAnalytics(c echo.Context) error {
	return h.areaQuery(c, func(ctx context.Context, id uint64) (interface{}, error) {
		return h.Analytics.Slots(ctx, id)
	})
}

// Charts returns the hourly and daily series.  from/to (or start/end)
// switch to a single series over that range.
func (h *OwnerHandler) Charts(c echo.Context) error {
	from, ok1 := timeQuery(c, h.Loc, "from", "start")
	to, ok2 := timeQuery(c, h.Loc, "to", "end")
	if !ok1 || !ok2 {
		return badRequest(c, "invalid time range")
	}
	return h.areaQuery(c, func(ctx context.Context, id uint64) (interface{}, error) {
		return h.Analytics.Charts(ctx, id, from, to)
	})
}

// Logs returns the latest bookings of an owned area.
func (h *OwnerHandler) Logs(c echo.Context) error {
	return h.areaQuery(c, func(ctx context.Context, id uint64) (interface{}, error) {
		return h.Analytics.Logs(ctx, id)
	})
}

func (h *OwnerHandler) areaQuery(c echo.Context, fn func(context.Context, uint64) (interface{}, error)) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, ok, err := h.ownedArea(ctx, c)
	if !ok {
		return err
	}
	out, err := fn(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// AllAreas is the admin summary across every area, optionally limited to
// bookings made in [from, to).
func (h *OwnerHandler) AllAreas(c echo.Context) error {
	from, ok1 := timeQuery(c, h.Loc, "from", "start")
	to, ok2 := timeQuery(c, h.Loc, "to", "end")
	if !ok1 || !ok2 {
		return badRequest(c, "invalid time range")
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return badRequest(c, "to must be after from")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Analytics.AllAreas(ctx, from, to)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}
