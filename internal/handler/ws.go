package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parkease/internal/middleware"
	"github.com/iliyamo/parkease/internal/push"
	"github.com/iliyamo/parkease/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow every origin
	},
}

// PushHandler upgrades authenticated requests to push sessions.
type PushHandler struct {
	Hub    *push.Hub
	Secret string
	Log    logrus.FieldLogger
}

func NewPushHandler(h *push.Hub, secret string, log logrus.FieldLogger) *PushHandler {
	return &PushHandler{Hub: h, Secret: secret, Log: log}
}

// Connect authenticates with ?token= or the usual headers, then serves the
// session until the peer disconnects.  A user may hold several sessions.
func (h *PushHandler) Connect(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		raw = middleware.TokenFrom(c.Request())
	}
	if raw == "" {
		return unauthorized(c, "missing token")
	}
	claims, err := utils.ParseAccessToken(h.Secret, raw)
	if err != nil {
		return unauthorized(c, "invalid token")
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Log.WithError(err).Warn("websocket upgrade failed")
		return nil // Upgrade already wrote the error response
	}
	client := push.NewClient(claims.UserID, conn)
	log := h.Log.WithFields(logrus.Fields{"user_id": claims.UserID, "session": client.ID()})
	log.Debug("push session opened")
	client.Serve(h.Hub, log)
	log.Debug("push session closed")
	return nil
}
