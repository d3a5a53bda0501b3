package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
)

// VehicleStore manages a driver's vehicles.
type VehicleStore interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.Vehicle, error)
	Create(ctx context.Context, v *model.Vehicle) error
	SetPrimary(ctx context.Context, userID, vehicleID uint64) error
}

// WalletReader returns a user's wallet.
type WalletReader interface {
	Get(ctx context.Context, userID uint64) (model.Wallet, error)
}

// UserHandler serves the signed-in user's profile and vehicles.
type UserHandler struct {
	Users    UserStore
	Vehicles VehicleStore
	Wallets  WalletReader
	Log      logrus.FieldLogger
}

func NewUserHandler(u UserStore, v VehicleStore, w WalletReader, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{Users: u, Vehicles: v, Wallets: w, Log: log}
}

type profileResp struct {
	ID            uint64      `json:"id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	Role          string      `json:"role"`
	Latitude      *float64    `json:"latitude"`
	Longitude     *float64    `json:"longitude"`
	WalletBalance model.Money `json:"walletBalance"`
	PendingDebt   model.Money `json:"pendingDebt"`
}

// Profile returns the user with their wallet position.
func (h *UserHandler) Profile(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	w, err := h.Wallets.Get(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, profileResp{
		ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, Role: u.Role,
		Latitude: u.Lat, Longitude: u.Lon,
		WalletBalance: w.Balance, PendingDebt: w.PendingDebt,
	})
}

type locationReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UpdateLocation stores the user's home location.
func (h *UserHandler) UpdateLocation(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req locationReq
	if err := c.Bind(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		return badRequest(c, "latitude and longitude required")
	}
	lat, lon := *req.Latitude, *req.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return badRequest(c, "coordinates out of range")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.UpdateLocation(ctx, uid, lat, lon); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "location updated", "latitude": lat, "longitude": lon})
}

// vehicleItem is the list shape the booking screen filters on.
type vehicleItem struct {
	Vehicle   model.Vehicle `json:"vehicle"`
	IsPrimary bool          `json:"isPrimary"`
}

// ListVehicles returns the user's vehicles, primary first.
func (h *UserHandler) ListVehicles(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Vehicles.ListByUser(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]vehicleItem, 0, len(list))
	for _, v := range list {
		out = append(out, vehicleItem{Vehicle: v, IsPrimary: v.IsPrimary})
	}
	return c.JSON(http.StatusOK, out)
}

type vehicleReq struct {
	RegisterNumber string `json:"registerNumber"`
	Model          string `json:"model"`
	Color          string `json:"color"`
	Type           string `json:"type"`
	VehicleType    string `json:"vehicleType"`
	IsPrimary      bool   `json:"isPrimary"`
}

// AddVehicle registers a vehicle.  isPrimary moves the primary flag to it.
func (h *UserHandler) AddVehicle(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.RegisterNumber) == "" {
		return badRequest(c, "registerNumber required")
	}
	raw := req.VehicleType
	if raw == "" {
		raw = req.Type
	}
	vt, ok := model.ParseVehicleType(raw)
	if !ok {
		return badRequest(c, "vehicle type must be SMALL, MEDIUM or LARGE")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v := model.Vehicle{
		UserID:         uid,
		RegisterNumber: req.RegisterNumber,
		Model:          strings.TrimSpace(req.Model),
		Color:          strings.TrimSpace(req.Color),
		VehicleType:    vt,
	}
	if err := h.Vehicles.Create(ctx, &v); err != nil {
		return fail(c, h.Log, err)
	}
	if req.IsPrimary && !v.IsPrimary {
		if err := h.Vehicles.SetPrimary(ctx, uid, v.ID); err != nil {
			return fail(c, h.Log, err)
		}
		v.IsPrimary = true
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "vehicle registered", "vehicle": v})
}

// SetPrimary marks one of the user's vehicles as primary.
func (h *UserHandler) SetPrimary(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c, "unauthorized")
	}
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "invalid vehicle id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Vehicles.SetPrimary(ctx, uid, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "primary vehicle updated", "vehicleId": id})
}
