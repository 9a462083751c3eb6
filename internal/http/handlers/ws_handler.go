// README: Websocket endpoint for mechanics to receive offers in real time.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"roadside/internal/http/middleware"
	"roadside/internal/modules/notify"
	"roadside/internal/types"
)

type SocketHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewSocketHandler(hub *notify.Hub, log logrus.FieldLogger) *SocketHandler {
	return &SocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Mechanic upgrades the caller's own channel and blocks until the client goes away.
func (h *SocketHandler) Mechanic(c *gin.Context) {
	id := c.Param("id")
	if middleware.CallerRole(c) != middleware.RoleMechanic || middleware.CallerUID(c) != id {
		writeError(c, http.StatusForbidden, "not your channel")
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws: upgrade failed")
		return
	}
	mechanicID := types.ID(id)
	h.hub.Register(mechanicID, conn)
	defer h.hub.Unregister(mechanicID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
