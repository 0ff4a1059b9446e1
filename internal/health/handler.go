package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/voice-relay/internal/relay"
	"github.com/eleven-am/voice-relay/internal/shared"
)

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	MemorySysMB   uint64 `json:"memory_sys_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type StatusResponse struct {
	Status        string       `json:"status"`
	Timestamp     time.Time    `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Sessions      int          `json:"sessions"`
	Runtime       RuntimeStats `json:"runtime"`
}

type SessionsResponse struct {
	Total    int      `json:"total"`
	Sessions []string `json:"sessions"`
}

type SessionDetailResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

type Handler struct {
	manager   *relay.Manager
	startTime time.Time
}

func NewHandler(manager *relay.Manager) *Handler {
	return &Handler{
		manager:   manager,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Status)
	e.GET("/health/sessions", h.Sessions)
	e.GET("/health/sessions/:id", h.SessionDetail)
}

func (h *Handler) Status(c echo.Context) error {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return c.JSON(http.StatusOK, StatusResponse{
		Status:        "ok",
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Sessions:      h.manager.SessionCount(),
		Runtime: RuntimeStats{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: memStats.Alloc / 1024 / 1024,
			MemorySysMB:   memStats.Sys / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	})
}

func (h *Handler) Sessions(c echo.Context) error {
	ids := h.manager.SessionIDs()
	return c.JSON(http.StatusOK, SessionsResponse{
		Total:    len(ids),
		Sessions: ids,
	})
}

func (h *Handler) SessionDetail(c echo.Context) error {
	id := c.Param("id")
	session, ok := h.manager.GetSession(id)
	if !ok {
		return shared.NotFound("session_not_found", "no active session with that id")
	}

	return c.JSON(http.StatusOK, SessionDetailResponse{
		SessionID: session.SessionID(),
		State:     string(session.State()),
	})
}
