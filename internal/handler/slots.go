package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
)

// AreaStore reads and writes parking areas.
type AreaStore interface {
	Create(ctx context.Context, a *model.Area) (int, error)
	Get(ctx context.Context, id uint64) (model.Area, error)
	CheckOwner(ctx context.Context, areaID, ownerID uint64) error
	ListByOwner(ctx context.Context, ownerID uint64) ([]model.AreaSummary, error)
	ListAll(ctx context.Context) ([]model.AreaSummary, error)
}

// SlotStore reads and edits slots.  Status changes made by bookings go
// through the engine, never through here.
type SlotStore interface {
	ListByArea(ctx context.Context, areaID uint64) ([]model.Slot, error)
	Details(ctx context.Context, slotID uint64) (repository.SlotDetails, error)
	Create(ctx context.Context, s *model.Slot) error
	UpdateBatch(ctx context.Context, areaID uint64, items []repository.SlotUpdate) (int, error)
}

// SlotHandler serves the driver-facing slot map.
type SlotHandler struct {
	Areas AreaStore
	Slots SlotStore
	Log   logrus.FieldLogger
}

func NewSlotHandler(a AreaStore, s SlotStore, log logrus.FieldLogger) *SlotHandler {
	return &SlotHandler{Areas: a, Slots: s, Log: log}
}

// All lists every area with live availability.
func (h *SlotHandler) All(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	areas, err := h.Areas.ListAll(ctx)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if areas == nil {
		areas = []model.AreaSummary{}
	}
	return c.JSON(http.StatusOK, areas)
}

// ByArea lists one area's slots.
func (h *SlotHandler) ByArea(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid area id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	area, err := h.Areas.Get(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	slots, err := h.Slots.ListByArea(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return c.JSON(http.StatusOK, echo.Map{"area": area, "slots": slots})
}

// Details returns one slot with its area.
func (h *SlotHandler) Details(c echo.Context) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid slot id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Slots.Details(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}
