package api

import (
	stderrors "errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
)

// errorHandler renders AppErrors with a status derived from their code
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  apperrors.GetCode(err),
	})
}

func statusFor(err error) int {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch {
	case stderrors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound
	case stderrors.Is(err, apperrors.ErrBadRequest),
		stderrors.Is(err, apperrors.ErrInvalidTime),
		stderrors.Is(err, apperrors.ErrDuplicateMedication):
		return fiber.StatusBadRequest
	case stderrors.Is(err, apperrors.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case stderrors.Is(err, apperrors.ErrForbidden):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.core.Snapshot()
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"initialized": snap.IsInitialized,
		"timestamp":   time.Now().Unix(),
	})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.core.Snapshot())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.core.Snapshot()
	res := s.core.Result()
	return c.JSON(statusResponse{
		Mode:           res.Mode,
		Reachable:      res.Reachable,
		Initialized:    snap.IsInitialized,
		Screen:         snap.Screen,
		RemindersArmed: s.core.RemindersArmed(),
		Permission:     s.core.PermissionState(),
		Medications:    len(snap.Profile.Medications),
		Error:          snap.Error,
	})
}

func (s *Server) handleView(c *fiber.Ctx) error {
	return c.JSON(s.core.View())
}

func (s *Server) handleNavigate(c *fiber.Ctx) error {
	var req navigateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	screen := s.core.Navigate(c.UserContext(), req.Screen)
	return c.JSON(fiber.Map{"screen": screen})
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var patch health.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	return c.JSON(s.core.UpdateSettings(patch))
}

func (s *Server) handleToggleTheme(c *fiber.Ctx) error {
	dark := s.core.ToggleDarkMode(c.UserContext())
	return c.JSON(fiber.Map{"darkMode": dark})
}

func (s *Server) handleSaveProfile(c *fiber.Ctx) error {
	var profile health.UserProfile
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	id, synced, err := s.core.SaveProfile(c.UserContext(), profile)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if !synced {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"profileId": id, "synced": synced})
}

func (s *Server) handleListToasts(c *fiber.Ctx) error {
	return c.JSON(s.core.Toasts())
}

func (s *Server) handleToastAction(c *fiber.Ctx) error {
	if err := s.core.InvokeToast(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(204)
}

func (s *Server) handleMarkTaken(c *fiber.Ctx) error {
	var req occurrenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.core.MarkTaken(req.occurrence()); err != nil {
		s.logger.Warn("Mark taken failed", zap.Error(err))
		return err
	}
	return c.SendStatus(204)
}

func (s *Server) handleSnooze(c *fiber.Ctx) error {
	var req occurrenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.core.Snooze(req.occurrence()); err != nil {
		return err
	}
	return c.SendStatus(202)
}

func (s *Server) handleDoses(c *fiber.Ctx) error {
	date := c.Query("date", health.DateString(time.Now()))
	doses, adherence, err := s.core.DoseReport(date)
	if err != nil {
		return err
	}
	return c.JSON(doseResponse{Date: date, Doses: doses, Adherence: adherence})
}
