// Package v1 provides the admin HTTP handlers for the relay.
package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/session"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/store"
)

// Handler handles admin HTTP requests.
type Handler struct {
	registry *session.Registry
	store    store.Store
}

// NewHandler creates a new handler.
func NewHandler(registry *session.Registry, st store.Store) *Handler {
	return &Handler{
		registry: registry,
		store:    st,
	}
}

// RegisterRoutes registers admin routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	e.GET("/v1/sessions", h.ListSessions)
	e.GET("/v1/sessions/:user_id", h.GetSession)
	e.POST("/v1/sessions/:user_id/clear", h.ClearSession)
	e.PUT("/v1/sessions/:user_id/budget", h.SetBudget)

	e.GET("/v1/usage/:user_id", h.GetUsage)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// ListSessions returns a snapshot of all sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": h.registry.Snapshot(),
	})
}

// GetSession returns the snapshot of one session.
func (h *Handler) GetSession(c echo.Context) error {
	sess, ok := h.lookupSession(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, sess.Info())
}

// ClearSession resets one session's history.
func (h *Handler) ClearSession(c echo.Context) error {
	sess, ok := h.lookupSession(c)
	if !ok {
		return nil
	}
	sess.Clear()
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

// SetBudget replaces one session's token budget.
func (h *Handler) SetBudget(c echo.Context) error {
	sess, ok := h.lookupSession(c)
	if !ok {
		return nil
	}

	var req struct {
		Budget int `json:"budget"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := sess.SetBudget(req.Budget); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "budget": req.Budget})
}

// GetUsage returns the usage ledger for one user.
func (h *Handler) GetUsage(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
	}

	totals, err := h.store.UsageTotals(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	records, err := h.store.ListUsage(c.Request().Context(), userID, 50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"totals":  totals,
		"records": records,
	})
}

// lookupSession resolves the :user_id path parameter to a session. On
// failure it writes the error response and returns false.
func (h *Handler) lookupSession(c echo.Context) (*session.Session, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return nil, false
	}
	sess, ok := h.registry.Get(userID)
	if !ok {
		c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return sess, true
}
