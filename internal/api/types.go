package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/bootstrap"
	"github.com/gmsas95/skysense/internal/config"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/screen"
	"github.com/gmsas95/skysense/internal/state"
)

// Core is the runtime surface the API drives
type Core interface {
	Snapshot() state.AppState
	View() screen.View
	Result() bootstrap.Result
	RemindersArmed() bool
	PermissionState() string

	Navigate(ctx context.Context, name string) state.Screen
	UpdateSettings(patch health.SettingsPatch) health.AppSettings
	ToggleDarkMode(ctx context.Context) bool
	SaveProfile(ctx context.Context, profile health.UserProfile) (string, bool, error)

	Toasts() []notify.Toast
	InvokeToast(id string) error

	MarkTaken(occ health.Occurrence) error
	Snooze(occ health.Occurrence) error
	DoseReport(date string) ([]health.DoseLog, float64, error)
}

// Server is the local control API
type Server struct {
	app     *fiber.App
	config  *config.Config
	core    Core
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(cfg *config.Config, core Core, m *metrics.Metrics, logger *zap.Logger) *Server {
	readTimeout := time.Duration(cfg.Server.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.Default()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:     app,
		config:  cfg,
		core:    core,
		metrics: m,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// App exposes the fiber app for in-process testing
func (s *Server) App() *fiber.App {
	return s.app
}

type navigateRequest struct {
	Screen string `json:"screen"`
}

type occurrenceRequest struct {
	MedicationID string `json:"medicationId"`
	Date         string `json:"date"`
	Time         string `json:"time"`
}

func (r occurrenceRequest) occurrence() health.Occurrence {
	return health.Occurrence{MedicationID: r.MedicationID, Date: r.Date, Time: r.Time}
}

type statusResponse struct {
	Mode           bootstrap.Mode `json:"mode"`
	Reachable      bool           `json:"reachable"`
	Initialized    bool           `json:"initialized"`
	Screen         state.Screen   `json:"screen"`
	RemindersArmed bool           `json:"remindersArmed"`
	Permission     string         `json:"permission"`
	Medications    int            `json:"medications"`
	Error          string         `json:"error,omitempty"`
}

type doseResponse struct {
	Date      string           `json:"date"`
	Doses     []health.DoseLog `json:"doses"`
	Adherence float64          `json:"adherence"`
}
