package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
	"github.com/iliyamo/parkease/internal/utils"
	"github.com/iliyamo/parkease/internal/wallet"
)

const secret = "handler-secret"

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return at.Token
}

// call mounts h at route behind JWTAuth and performs one request.  An
// empty token sends the request anonymously.
func call(t *testing.T, method, route, target, body, token string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Add(method, route, h, middleware.JWTAuth(secret))
	return do(e, method, target, body, token)
}

func do(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrSlotUnavailable, http.StatusConflict, CodeSlotUnavailable},
		{fmt.Errorf("create: %w", booking.ErrActiveBookingExists), http.StatusConflict, CodeActiveBookingExists},
		{booking.ErrReservationExpired, http.StatusGone, CodeReservationExpired},
		{booking.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition},
		{booking.ErrBookingConflict, http.StatusConflict, CodeInvalidTransition},
		{booking.ErrBookingNotFound, http.StatusNotFound, CodeNotFound},
		{booking.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{booking.ErrVehicleMismatch, http.StatusBadRequest, CodeBadRequest},
		{repository.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{repository.ErrConflict, http.StatusConflict, CodeConflict},
		{repository.ErrEmailExists, http.StatusConflict, CodeConflict},
		{wallet.ErrInvalidAmount, http.StatusBadRequest, CodeBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := call(t, http.MethodGet, "/x", "/x", "", bearer(t, 1, model.RoleDriver), func(c echo.Context) error {
		return fail(c, quietLog(), fmt.Errorf("dial tcp 10.0.0.1:3306: refused"))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal error", body["error"])
	assert.Equal(t, CodeInternal, body["code"])
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health(pinger{}))
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "", "").Code)

	e = echo.New()
	e.GET("/healthz", Health(pinger{err: fmt.Errorf("down")}))
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/healthz", "", "").Code)
}

func TestTimeQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-03-01&to=bogus", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	got, ok := timeQuery(c, nil, "from", "start")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, ok = timeQuery(c, nil, "to", "end")
	assert.False(t, ok)

	got, ok = timeQuery(c, nil, "missing")
	assert.True(t, ok)
	assert.True(t, got.IsZero())
}

func TestTimeQueryLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-03-01&end=2026-03-01T10:00:00%2B00:00", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	got, ok := timeQuery(c, ist, "start")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 2, 28, 18, 30, 0, 0, time.UTC)), got)

	// an explicit offset wins over loc
	got, ok = timeQuery(c, ist, "end")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)), got)
}

// ----- booking -----

type fakeEngine struct {
	req     booking.CreateRequest
	created model.Booking
	err     error
	active  *model.Booking
	list    []model.Booking
}

func (f *fakeEngine) Create(_ context.Context, req booking.CreateRequest) (model.Booking, error) {
	f.req = req
	if f.err != nil {
		return model.Booking{}, f.err
	}
	b := f.created
	b.UserID, b.SlotID, b.VehicleID, b.Status = req.UserID, req.SlotID, req.VehicleID, req.Start
	return b, nil
}

func (f *fakeEngine) Arrive(_ context.Context, userID, id uint64) (model.Booking, error) {
	if f.err != nil {
		return model.Booking{}, f.err
	}
	return model.Booking{ID: id, UserID: userID, Status: model.BookingActiveParking}, nil
}

func (f *fakeEngine) End(_ context.Context, _, id uint64) (model.Receipt, error) {
	if f.err != nil {
		return model.Receipt{}, f.err
	}
	return model.Receipt{BookingID: id, FinalParkingFee: model.Rupees(50), AmountPaid: model.Rupees(50)}, nil
}

func (f *fakeEngine) Get(_ context.Context, _, id uint64) (model.Booking, error) {
	if f.err != nil {
		return model.Booking{}, f.err
	}
	return model.Booking{ID: id}, nil
}

func (f *fakeEngine) Active(context.Context, uint64) (model.Booking, bool, error) {
	if f.active == nil {
		return model.Booking{}, false, f.err
	}
	return *f.active, true, nil
}

func (f *fakeEngine) ListActive(context.Context, uint64) ([]model.Booking, error) {
	return f.list, f.err
}
func (f *fakeEngine) History(context.Context, uint64) ([]model.Booking, error) { return f.list, f.err }

func TestBookingCreateDefaultsToReserved(t *testing.T) {
	eng := &fakeEngine{created: model.Booking{ID: 9}}
	h := NewBookingHandler(eng, quietLog())

	rec := call(t, http.MethodPost, "/bookings/create", "/bookings/create",
		`{"vehicleId":3,"slotId":7,"areaId":2}`, bearer(t, 42, model.RoleDriver), h.Create)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, booking.CreateRequest{UserID: 42, VehicleID: 3, SlotID: 7, AreaID: 2, Start: model.BookingReserved}, eng.req)
	assert.Equal(t, "RESERVED", decode(t, rec)["status"])
}

func TestBookingCreateParkNow(t *testing.T) {
	eng := &fakeEngine{}
	h := NewBookingHandler(eng, quietLog())

	rec := call(t, http.MethodPost, "/bookings/create", "/bookings/create",
		`{"vehicleId":3,"slotId":7,"initialStatus":"active_parking"}`, bearer(t, 42, model.RoleDriver), h.Create)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.BookingActiveParking, eng.req.Start)
}

func TestBookingCreateValidation(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	tok := bearer(t, 42, model.RoleDriver)

	for _, body := range []string{
		`{"slotId":7}`,
		`{"vehicleId":3,"slotId":7,"initialStatus":"COMPLETED"}`,
		`not json`,
	} {
		rec := call(t, http.MethodPost, "/bookings/create", "/bookings/create", body, tok, h.Create)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestBookingCreateSlotTaken(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{err: booking.ErrSlotUnavailable}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/create", "/bookings/create",
		`{"vehicleId":3,"slotId":7}`, bearer(t, 42, model.RoleDriver), h.Create)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeSlotUnavailable, decode(t, rec)["code"])
}

func TestBookingRequiresToken(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/create", "/bookings/create", `{"vehicleId":3,"slotId":7}`, "", h.Create)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingArriveExpired(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{err: booking.ErrReservationExpired}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/:id/arrive", "/bookings/5/arrive", "", bearer(t, 42, model.RoleDriver), h.Arrive)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, CodeReservationExpired, decode(t, rec)["code"])
}

func TestBookingArriveBadID(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/:id/arrive", "/bookings/abc/arrive", "", bearer(t, 42, model.RoleDriver), h.Arrive)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingEndReturnsReceipt(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/:id/end", "/bookings/5/end", "", bearer(t, 42, model.RoleDriver), h.End)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 5, body["bookingId"])
	assert.EqualValues(t, 50, body["finalParkingFee"])
}

func TestBookingEndWrongState(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{err: booking.ErrInvalidTransition}, quietLog())
	rec := call(t, http.MethodPost, "/bookings/:id/end", "/bookings/5/end", "", bearer(t, 42, model.RoleDriver), h.End)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidTransition, decode(t, rec)["code"])
}

func TestBookingActive(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	rec := call(t, http.MethodGet, "/bookings/active", "/bookings/active", "", bearer(t, 42, model.RoleDriver), h.Active)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h = NewBookingHandler(&fakeEngine{active: &model.Booking{ID: 8, Status: model.BookingReserved}}, quietLog())
	rec = call(t, http.MethodGet, "/bookings/active", "/bookings/active", "", bearer(t, 42, model.RoleDriver), h.Active)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 8, decode(t, rec)["id"])
}

func TestBookingListNeverNull(t *testing.T) {
	h := NewBookingHandler(&fakeEngine{}, quietLog())
	rec := call(t, http.MethodGet, "/bookings/list/history", "/bookings/list/history", "", bearer(t, 42, model.RoleDriver), h.History)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// ----- wallet -----

type fakeWallets struct {
	amount model.Money
	method string
}

func (f *fakeWallets) Get(_ context.Context, uid uint64) (model.Wallet, error) {
	return model.Wallet{UserID: uid, Balance: model.Rupees(120)}, nil
}

func (f *fakeWallets) TopUp(_ context.Context, uid uint64, amount model.Money, method string) (wallet.TopUpResult, error) {
	f.amount, f.method = amount, method
	return wallet.TopUpResult{
		Wallet:        model.Wallet{UserID: uid, Balance: amount - model.Rupees(30)},
		DebtCollected: model.Rupees(30),
	}, nil
}

type fakeLedger struct{}

func (fakeLedger) Ledger(context.Context, uint64, int) ([]model.LedgerEntry, error) { return nil, nil }

func TestWalletTopUp(t *testing.T) {
	w := &fakeWallets{}
	h := NewWalletHandler(w, fakeLedger{}, model.Rupees(100000), quietLog())

	rec := call(t, http.MethodPost, "/wallet/topup", "/wallet/topup",
		`{"amount":100.5,"paymentMethod":"UPI"}`, bearer(t, 42, model.RoleDriver), h.TopUp)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.Money(10050), w.amount)
	assert.Equal(t, "UPI", w.method)
	body := decode(t, rec)
	assert.EqualValues(t, 70.5, body["balance"])
	assert.EqualValues(t, 30, body["debtCollected"])
}

func TestWalletTopUpRejectsNonPositive(t *testing.T) {
	h := NewWalletHandler(&fakeWallets{}, fakeLedger{}, model.Rupees(100000), quietLog())
	for _, body := range []string{`{"amount":0}`, `{"amount":-5}`} {
		rec := call(t, http.MethodPost, "/wallet/topup", "/wallet/topup", body, bearer(t, 42, model.RoleDriver), h.TopUp)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestWalletTopUpLimit(t *testing.T) {
	w := &fakeWallets{}
	h := NewWalletHandler(w, fakeLedger{}, model.Rupees(100000), quietLog())
	for _, body := range []string{`{"amount":100000.01}`, `{"amount":9e16}`, `{"amount":1e300}`} {
		rec := call(t, http.MethodPost, "/wallet/topup", "/wallet/topup", body, bearer(t, 42, model.RoleDriver), h.TopUp)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, w.amount, "rejected top-ups never reach the wallet")

	rec := call(t, http.MethodPost, "/wallet/topup", "/wallet/topup", `{"amount":100000}`, bearer(t, 42, model.RoleDriver), h.TopUp)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWalletTransactionsEmpty(t *testing.T) {
	h := NewWalletHandler(&fakeWallets{}, fakeLedger{}, model.Rupees(100000), quietLog())
	rec := call(t, http.MethodGet, "/wallet/transactions", "/wallet/transactions", "", bearer(t, 42, model.RoleDriver), h.Transactions)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
