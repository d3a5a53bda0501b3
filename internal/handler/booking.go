package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
)

// Bookings is the lifecycle surface of *booking.Engine.
type Bookings interface {
	Create(ctx context.Context, req booking.CreateRequest) (model.Booking, error)
	Arrive(ctx context.Context, userID, bookingID uint64) (model.Booking, error)
	End(ctx context.Context, userID, bookingID uint64) (model.Receipt, error)
	Get(ctx context.Context, userID, bookingID uint64) (model.Booking, error)
	Active(ctx context.Context, userID uint64) (model.Booking, bool, error)
	ListActive(ctx context.Context, userID uint64) ([]model.Booking, error)
	History(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// BookingHandler exposes the driver booking endpoints.
type BookingHandler struct {
	Engine Bookings
	Log    logrus.FieldLogger
}

func NewBookingHandler(e Bookings, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{Engine: e, Log: log}
}

type createBookingReq struct {
	VehicleID     uint64 `json:"vehicleId"`
	SlotID        uint64 `json:"slotId"`
	AreaID        uint64 `json:"areaId"`
	InitialStatus string `json:"initialStatus"`
}

// Create reserves a slot or starts parking right away.  initialStatus
// defaults to RESERVED.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.VehicleID == 0 || req.SlotID == 0 {
		return badRequest(c, "vehicleId and slotId required")
	}
	start := model.BookingStatus(strings.ToUpper(strings.TrimSpace(req.InitialStatus)))
	switch start {
	case "":
		start = model.BookingReserved
	case model.BookingReserved, model.BookingActiveParking:
	default:
		return badRequest(c, "initialStatus must be RESERVED or ACTIVE_PARKING")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Engine.Create(ctx, booking.CreateRequest{
		UserID: uid, VehicleID: req.VehicleID, SlotID: req.SlotID, AreaID: req.AreaID, Start: start,
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Arrive starts parking on a reservation.  A reservation past its cutoff
// is cancelled and answered with 410.
func (h *BookingHandler) Arrive(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, uid, id uint64) (interface{}, error) {
		return h.Engine.Arrive(ctx, uid, id)
	})
}

// End settles a parking session and returns the receipt.
func (h *BookingHandler) End(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, uid, id uint64) (interface{}, error) {
		return h.Engine.End(ctx, uid, id)
	})
}

// Get returns one of the user's bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	return h.transition(c, func(ctx context.Context, uid, id uint64) (interface{}, error) {
		return h.Engine.Get(ctx, uid, id)
	})
}

func (h *BookingHandler) transition(c echo.Context, fn func(ctx context.Context, uid, id uint64) (interface{}, error)) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := fn(ctx, uid, id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Active returns the user's live booking or 404.
func (h *BookingHandler) Active(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, found, err := h.Engine.Active(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active booking", "code": CodeNotFound})
	}
	return c.JSON(http.StatusOK, b)
}

// ListActive returns live bookings, newest first.
func (h *BookingHandler) ListActive(c echo.Context) error {
	return h.list(c, h.Engine.ListActive)
}

// History returns finished bookings, newest first.
func (h *BookingHandler) History(c echo.Context) error {
	return h.list(c, h.Engine.History)
}

func (h *BookingHandler) list(c echo.Context, fn func(context.Context, uint64) ([]model.Booking, error)) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := fn(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, list)
}
