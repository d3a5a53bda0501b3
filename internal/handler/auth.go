package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/config"
	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/repository"
	"github.com/iliyamo/parkease/internal/utils"
)

// UserStore is the user persistence AuthHandler and UserHandler need.
type UserStore interface {
	Create(ctx context.Context, u repository.NewUser, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateLocation(ctx context.Context, id uint64, lat, lon float64) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	Rotate(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    logrus.FieldLogger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"` // read by register-official and create-staff only
}

// check trims the fields and returns a message for the first problem, or
// "" when the request is usable.
func (r *registerReq) check() string {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Email == "" || r.Password == "" || r.Name == "" {
		return "name, email and password required"
	}
	if len(r.Password) < 6 {
		return "password must be at least 6 characters"
	}
	return ""
}

func (r registerReq) user(role string) repository.NewUser {
	return repository.NewUser{Name: r.Name, Email: r.Email, Phone: r.Phone, Password: r.Password, Role: role}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// authResp carries the token pair.  Token and Username repeat the access
// token and display name at the top level for the web client.
type authResp struct {
	Token    string    `json:"token"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	User     userPart  `json:"user"`
	Access   tokenPart `json:"access"`
	Refresh  tokenPart `json:"refresh"`
}

// issue creates and stores a fresh token pair for u.
func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return pair(u, access, refresh), nil
}

func pair(u userPart, access utils.AccessToken, refresh utils.RefreshToken) authResp {
	return authResp{
		Token:    access.Token,
		Username: u.Name,
		Role:     u.Role,
		User:     u,
		Access:   tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:  tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}
}

// Register creates a driver account and returns tokens immediately.  Any
// role in the body is ignored; officials sign up through RegisterOfficial.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.check(); msg != "" {
		return badRequest(c, msg)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.user(model.RoleDriver), h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, h.Log, err)
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Name: req.Name, Email: req.Email, Role: model.RoleDriver})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// RegisterOfficial records an AREA_OWNER or ADMIN signup.  The account
// stays inactive, and cannot log in, until an admin approves it.
func (h *AuthHandler) RegisterOfficial(c echo.Context) error {
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

	nu := req.user(role)
	nu.Pending = true
	uid, err := h.Users.Create(ctx, nu, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.WithFields(logrus.Fields{"user_id": uid, "role": role}).Info("official signup awaiting approval")
	return c.JSON(http.StatusCreated, echo.Map{"message": "registration received; an admin must approve the account", "userId": uid, "role": role})
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid credentials")
		}
		return fail(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return unauthorized(c, "invalid credentials")
	}
	if !u.IsActive {
		return forbidden(c, "account is not active")
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new pair.  The old token is
// revoked in the same transaction, so replaying it fails.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Log, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Log, err)
	}
	if !u.IsActive {
		return unauthorized(c, "invalid refresh")
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, h.Log, err)
	}
	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Tokens.Rotate(ctx, u.ID, hash, utils.HashRefreshRaw(next.Raw), next.Exp); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pair(userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}, access, next))
}

// Logout revokes one refresh token when the body names it, otherwise every
// refresh token of the user identified by the access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if refresh != "" {
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	raw := middleware.TokenFrom(c.Request())
	if raw == "" {
		return badRequest(c, "provide X-Auth-Token or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, raw)
	if err != nil {
		return unauthorized(c, "invalid token")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
