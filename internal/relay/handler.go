package relay

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/eleven-am/voice-relay/internal/transport"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler exposes the duplex relay channel over a WebSocket upgrade.
type Handler struct {
	manager *Manager
	log     *slog.Logger
}

func NewHandler(manager *Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager: manager,
		log:     log.With("component", "relay_handler"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.handleWS)
}

func (h *Handler) handleWS(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := transport.NewWSConnection(ws, h.log)

	session, err := h.manager.CreateSession(conn)
	if err != nil {
		h.log.Error("failed to create relay session", "error", err)
		_ = conn.Close()
		return nil
	}

	h.log.Info("client connected", "session_id", session.SessionID())
	session.Run()
	h.manager.RemoveSession(session.SessionID())
	h.log.Info("client disconnected", "session_id", session.SessionID())
	return nil
}
