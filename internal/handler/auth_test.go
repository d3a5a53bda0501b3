package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/parkease/internal/config"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
	"github.com/iliyamo/parkease/internal/utils"
)

type fakeUsers struct {
	byEmail map[string]model.User
	created repository.NewUser
	nextID  uint64
}

func (f *fakeUsers) Create(_ context.Context, u repository.NewUser, _ int) (uint64, error) {
	if _, ok := f.byEmail[u.Email]; ok {
		return 0, repository.ErrEmailExists
	}
	f.created = u
	f.nextID++
	return f.nextID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) UpdateLocation(context.Context, uint64, float64, float64) error { return nil }

type fakeTokens struct {
	stored  map[string]uint64
	revoked []uint64
}

func (f *fakeTokens) StoreRefresh(_ context.Context, uid uint64, hash string, _ time.Time) error {
	if f.stored == nil {
		f.stored = map[string]uint64{}
	}
	f.stored[hash] = uid
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string, _ time.Time) (uint64, error) {
	uid, ok := f.stored[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return uid, nil
}

func (f *fakeTokens) Rotate(_ context.Context, uid uint64, oldHash, newHash string, _ time.Time) error {
	if _, ok := f.stored[oldHash]; !ok {
		return repository.ErrNotFound
	}
	delete(f.stored, oldHash)
	f.stored[newHash] = uid
	return nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	delete(f.stored, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, uid uint64) error {
	f.revoked = append(f.revoked, uid)
	return nil
}

func authHandler(t *testing.T, users ...model.User) (*AuthHandler, *fakeUsers, *fakeTokens) {
	t.Helper()
	fu := &fakeUsers{byEmail: map[string]model.User{}, nextID: 100}
	for _, u := range users {
		fu.byEmail[u.Email] = u
	}
	ft := &fakeTokens{}
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost}
	return NewAuthHandler(cfg, fu, ft, quietLog()), fu, ft
}

type result struct {
	Code int
	Body map[string]any
}

// anon performs an unauthenticated request against h mounted at path.
func anon(t *testing.T, method, path, body string, h echo.HandlerFunc) result {
	t.Helper()
	e := echo.New()
	e.Add(method, path, h)
	rec := do(e, method, path, body, "")
	res := result{Code: rec.Code}
	_ = json.Unmarshal(rec.Body.Bytes(), &res.Body)
	return res
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := utils.HashPassword(pw, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestRegisterIssuesTokens(t *testing.T) {
	h, fu, ft := authHandler(t)

	res := anon(t, http.MethodPost, "/auth/register",
		`{"name":" Asha ","email":"ASHA@example.com","password":"secret1"}`, h.Register)

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "asha@example.com", fu.created.Email)
	assert.Equal(t, "Asha", fu.created.Name)
	assert.Equal(t, model.RoleDriver, fu.created.Role)
	assert.False(t, fu.created.Pending)
	assert.Equal(t, "Asha", res.Body["username"])
	assert.Len(t, ft.stored, 1)

	claims, err := utils.ParseAccessToken(secret, res.Body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, uint64(101), claims.UserID)
	assert.Equal(t, model.RoleDriver, claims.Role)
}

func TestRegisterIgnoresRequestedRole(t *testing.T) {
	for _, role := range []string{"AREA_OWNER", "area_owner", "ADMIN", "GUARD"} {
		h, fu, _ := authHandler(t)
		res := anon(t, http.MethodPost, "/auth/register",
			`{"name":"Asha","email":"asha@example.com","password":"secret1","role":"`+role+`"}`, h.Register)

		require.Equal(t, http.StatusCreated, res.Code, role)
		assert.Equal(t, model.RoleDriver, fu.created.Role, role)
		assert.Equal(t, model.RoleDriver, res.Body["role"], role)
		claims, err := utils.ParseAccessToken(secret, res.Body["token"].(string))
		require.NoError(t, err)
		assert.Equal(t, model.RoleDriver, claims.Role, role)
	}
}

func TestRegisterOfficialIsPending(t *testing.T) {
	h, fu, ft := authHandler(t)

	res := anon(t, http.MethodPost, "/auth/register-official",
		`{"name":"Meera","email":"meera@example.com","phone":"98","password":"secret1","role":"area_owner"}`, h.RegisterOfficial)

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, model.RoleAreaOwner, fu.created.Role)
	assert.True(t, fu.created.Pending)
	assert.EqualValues(t, 101, res.Body["userId"])
	assert.NotEmpty(t, res.Body["message"])
	assert.Nil(t, res.Body["token"], "no tokens before approval")
	assert.Empty(t, ft.stored)

	for _, body := range []string{
		`{"name":"M","email":"m@example.com","password":"secret1","role":"DRIVER"}`,
		`{"name":"M","email":"m@example.com","password":"secret1","role":"GUARD"}`,
		`{"name":"M","email":"m@example.com","password":"secret1"}`,
		`{"name":"M","email":"m@example.com","password":"1","role":"ADMIN"}`,
	} {
		res := anon(t, http.MethodPost, "/auth/register-official", body, h.RegisterOfficial)
		assert.Equal(t, http.StatusBadRequest, res.Code, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _, _ := authHandler(t)
	for _, body := range []string{
		`{"email":"a@b.c","password":"secret1"}`,
		`{"name":"A","email":"a@b.c","password":"12345"}`,
		`{`,
	} {
		res := anon(t, http.MethodPost, "/auth/register", body, h.Register)
		assert.Equal(t, http.StatusBadRequest, res.Code, body)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _, _ := authHandler(t, model.User{ID: 1, Email: "a@b.c"})
	res := anon(t, http.MethodPost, "/auth/register", `{"name":"A","email":"a@b.c","password":"secret1"}`, h.Register)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestLogin(t *testing.T) {
	u := model.User{ID: 7, Name: "Ravi", Email: "ravi@example.com", Role: model.RoleDriver, IsActive: true, PasswordHash: hashed(t, "hunter22")}
	h, _, _ := authHandler(t, u)

	res := anon(t, http.MethodPost, "/auth/login", `{"email":"ravi@example.com","password":"hunter22"}`, h.Login)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Ravi", res.Body["username"])
	assert.Equal(t, model.RoleDriver, res.Body["role"])
	assert.NotEmpty(t, res.Body["token"])

	res = anon(t, http.MethodPost, "/auth/login", `{"email":"ravi@example.com","password":"wrong"}`, h.Login)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = anon(t, http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"hunter22"}`, h.Login)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	u := model.User{ID: 7, Email: "ravi@example.com", Role: model.RoleAreaOwner, PasswordHash: hashed(t, "hunter22")}
	h, _, ft := authHandler(t, u)

	res := anon(t, http.MethodPost, "/auth/login", `{"email":"ravi@example.com","password":"hunter22"}`, h.Login)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, CodeForbidden, res.Body["code"])
	assert.Empty(t, ft.stored)

	res = anon(t, http.MethodPost, "/auth/login", `{"email":"ravi@example.com","password":"wrong"}`, h.Login)
	assert.Equal(t, http.StatusUnauthorized, res.Code, "status is not disclosed without the password")
}

func TestRefreshRejectsInactiveUser(t *testing.T) {
	u := model.User{ID: 7, Email: "ravi@example.com", Role: model.RoleGuard}
	h, _, ft := authHandler(t, u)
	require.NoError(t, ft.StoreRefresh(context.Background(), 7, utils.HashRefreshRaw("raw"), time.Now().Add(time.Hour)))

	res := anon(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"raw"}`, h.Refresh)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRefreshRotates(t *testing.T) {
	u := model.User{ID: 7, Name: "Ravi", Email: "ravi@example.com", Role: model.RoleDriver, IsActive: true}
	h, _, ft := authHandler(t, u)
	require.NoError(t, ft.StoreRefresh(context.Background(), 7, utils.HashRefreshRaw("old-raw"), time.Now().Add(time.Hour)))

	res := anon(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"old-raw"}`, h.Refresh)
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, ft.stored, utils.HashRefreshRaw("old-raw"))
	assert.Len(t, ft.stored, 1)

	res = anon(t, http.MethodPost, "/auth/refresh", `{"refresh_token":"old-raw"}`, h.Refresh)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLogoutAllWithAccessToken(t *testing.T) {
	h, _, ft := authHandler(t)
	e := echo.New()
	e.POST("/auth/logout", h.Logout)

	rec := do(e, http.MethodPost, "/auth/logout", `{}`, bearer(t, 7, model.RoleDriver))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{7}, ft.revoked)

	rec = do(e, http.MethodPost, "/auth/logout", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
