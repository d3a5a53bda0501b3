package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/repository"
	"github.com/iliyamo/parkease/internal/wallet"
)

// Error codes returned in the "code" field.
const (
	CodeSlotUnavailable     = "SLOT_UNAVAILABLE"
	CodeActiveBookingExists = "ACTIVE_BOOKING_EXISTS"
	CodeReservationExpired  = "RESERVATION_EXPIRED"
	CodeInvalidTransition   = "INVALID_STATE_TRANSITION"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeBadRequest          = "BAD_REQUEST"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order with errors.Is.  Booking conflicts come
// before the generic repository conflict since ErrConflict aliases the slot
// conflict sentinel.
var errorTable = []errorMapping{
	{booking.ErrSlotUnavailable, http.StatusConflict, CodeSlotUnavailable},
	{booking.ErrActiveBookingExists, http.StatusConflict, CodeActiveBookingExists},
	{booking.ErrReservationExpired, http.StatusGone, CodeReservationExpired},
	{booking.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition},
	{booking.ErrBookingConflict, http.StatusConflict, CodeInvalidTransition},
	{booking.ErrBookingNotFound, http.StatusNotFound, CodeNotFound},
	{booking.ErrSlotNotFound, http.StatusNotFound, CodeNotFound},
	{booking.ErrVehicleNotFound, http.StatusNotFound, CodeNotFound},
	{booking.ErrVehicleMismatch, http.StatusBadRequest, CodeBadRequest},
	{booking.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{repository.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{repository.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{repository.ErrConflict, http.StatusConflict, CodeConflict},
	{repository.ErrDuplicate, http.StatusConflict, CodeConflict},
	{repository.ErrEmailExists, http.StatusConflict, CodeConflict},
	{repository.ErrInvalidSlotStatus, http.StatusBadRequest, CodeBadRequest},
	{wallet.ErrInvalidAmount, http.StatusBadRequest, CodeBadRequest},
}

// classify maps err to an HTTP status and code; unknown errors are 500.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// fail writes err as a JSON error body.  Internal errors are logged and
// their text withheld; invalid transitions are logged at error level since
// they point at state drift.
func fail(c echo.Context, log logrus.FieldLogger, err error) error {
	status, code := classify(err)
	entry := log.WithFields(logrus.Fields{"path": c.Path(), "code": code}).WithError(err)
	switch {
	case status >= 500:
		entry.Error("request failed")
		return c.JSON(status, echo.Map{"error": "internal error", "code": code})
	case code == CodeInvalidTransition:
		entry.Error("invalid state transition")
	}
	return c.JSON(status, echo.Map{"error": err.Error(), "code": code})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": CodeBadRequest})
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg, "code": CodeUnauthorized})
}

func forbidden(c echo.Context, msg string) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": msg, "code": CodeForbidden})
}
