package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parkease/internal/model"
)

type fakeVehicles struct {
	list    []model.Vehicle
	created model.Vehicle
	primary uint64
}

func (f *fakeVehicles) ListByUser(context.Context, uint64) ([]model.Vehicle, error) {
	return f.list, nil
}

func (f *fakeVehicles) Create(_ context.Context, v *model.Vehicle) error {
	v.ID = 31
	f.created = *v
	return nil
}

func (f *fakeVehicles) SetPrimary(_ context.Context, _, id uint64) error {
	f.primary = id
	return nil
}

func userHandler() (*UserHandler, *fakeVehicles) {
	lat, lon := 12.97, 77.59
	users := &fakeUsers{byEmail: map[string]model.User{
		"ravi@example.com": {ID: 7, Name: "Ravi", Email: "ravi@example.com", Role: model.RoleDriver, Lat: &lat, Lon: &lon},
	}}
	v := &fakeVehicles{}
	return NewUserHandler(users, v, &fakeWallets{}, quietLog()), v
}

func TestProfile(t *testing.T) {
	h, _ := userHandler()
	rec := call(t, http.MethodGet, "/user/profile", "/user/profile", "", bearer(t, 7, model.RoleDriver), h.Profile)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Ravi", body["name"])
	assert.EqualValues(t, 120, body["walletBalance"])
	assert.InDelta(t, 12.97, body["latitude"], 1e-9)
}

func TestUpdateLocationValidation(t *testing.T) {
	h, _ := userHandler()
	tok := bearer(t, 7, model.RoleDriver)

	rec := call(t, http.MethodPut, "/user/location", "/user/location", `{"latitude":10,"longitude":20}`, tok, h.UpdateLocation)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, body := range []string{`{"latitude":10}`, `{"latitude":91,"longitude":0}`, `{"latitude":0,"longitude":-181}`} {
		rec = call(t, http.MethodPut, "/user/location", "/user/location", body, tok, h.UpdateLocation)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestListVehiclesShape(t *testing.T) {
	h, v := userHandler()
	v.list = []model.Vehicle{
		{ID: 1, RegisterNumber: "KA01AB1234", VehicleType: model.VehicleMedium, IsPrimary: true},
		{ID: 2, RegisterNumber: "KA02CD5678", VehicleType: model.VehicleSmall},
	}
	rec := call(t, http.MethodGet, "/user/vehicles", "/user/vehicles", "", bearer(t, 7, model.RoleDriver), h.ListVehicles)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"vehicle":{"vehicleId":1,"userId":0,"registerNumber":"KA01AB1234","model":"","color":"","vehicleType":"MEDIUM","isPrimary":true,"createdAt":"0001-01-01T00:00:00Z"},"isPrimary":true},
		{"vehicle":{"vehicleId":2,"userId":0,"registerNumber":"KA02CD5678","model":"","color":"","vehicleType":"SMALL","isPrimary":false,"createdAt":"0001-01-01T00:00:00Z"},"isPrimary":false}
	]`, rec.Body.String())
}

func TestAddVehicle(t *testing.T) {
	h, v := userHandler()
	rec := call(t, http.MethodPost, "/vehicles/register", "/vehicles/register",
		`{"registerNumber":"KA01AB1234","model":"Swift","color":"red","type":"small","isPrimary":true}`,
		bearer(t, 7, model.RoleDriver), h.AddVehicle)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.VehicleSmall, v.created.VehicleType)
	assert.Equal(t, uint64(7), v.created.UserID)
	assert.Equal(t, uint64(31), v.primary)
}

func TestAddVehicleValidation(t *testing.T) {
	h, _ := userHandler()
	tok := bearer(t, 7, model.RoleDriver)
	for _, body := range []string{`{"type":"SMALL"}`, `{"registerNumber":"X1","type":"BUS"}`} {
		rec := call(t, http.MethodPost, "/vehicles/register", "/vehicles/register", body, tok, h.AddVehicle)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
