package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	if len(s.config.Security.AllowOrigins) > 0 {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}))
	}

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")
	protected := api.Use(s.authMiddleware())

	protected.Get("/state", s.handleState)
	protected.Get("/status", s.handleStatus)
	protected.Get("/view", s.handleView)
	protected.Post("/navigate", s.handleNavigate)

	protected.Put("/settings", s.handleUpdateSettings)
	protected.Post("/theme/toggle", s.handleToggleTheme)
	protected.Post("/profile", s.handleSaveProfile)

	protected.Get("/toasts", s.handleListToasts)
	protected.Post("/toasts/:id/action", s.handleToastAction)

	protected.Post("/reminders/taken", s.handleMarkTaken)
	protected.Post("/reminders/snooze", s.handleSnooze)
	protected.Get("/doses", s.handleDoses)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
