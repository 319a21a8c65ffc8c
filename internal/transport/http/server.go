// Package http provides the admin HTTP server for the relay.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	v1 "github.com/TTTPOB/chatgpt-tg-bot/internal/transport/http/v1"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/session"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/store"
)

// NewServer creates and configures the admin HTTP server. It exposes session
// observability and the same clear/budget commands the chat surface offers.
func NewServer(registry *session.Registry, st store.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	h := v1.NewHandler(registry, st)
	h.RegisterRoutes(e)

	return e
}
