package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/api"
	"github.com/gmsas95/skysense/internal/bootstrap"
	"github.com/gmsas95/skysense/internal/config"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/permission"
	"github.com/gmsas95/skysense/internal/reminder"
	"github.com/gmsas95/skysense/internal/remote"
	"github.com/gmsas95/skysense/internal/settingsync"
	"github.com/gmsas95/skysense/internal/state"
	"github.com/gmsas95/skysense/internal/store"
	"github.com/gmsas95/skysense/internal/watch"
)

// Options selects the collaborators the runtime talks to
type Options struct {
	Remote   remote.ProfileService
	System   notify.Capability[notify.Alert]
	Haptic   notify.Capability[[]time.Duration]
	Platform permission.Platform
	Ambient  bootstrap.Ambient

	// Desktop backs System when System is unset and is closed on Stop
	Desktop *notify.Desktop
}

// DefaultOptions wires the remote client and the host's notification surface
func DefaultOptions(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) Options {
	opts := Options{
		Remote:  remote.Offline{},
		Ambient: bootstrap.ThemeAmbient{Theme: cfg.Appearance.Theme},
	}
	if !cfg.Offline() {
		opts.Remote = remote.NewClient(cfg.Remote, logger, m)
	}

	desktop, ok := notify.LookupDesktop(logger)
	if ok {
		opts.Desktop = desktop
	}
	opts.Platform = permission.NewDesktop(ok)
	return opts
}

// App is the SkySense runtime: it owns the state and every component that
// reads or writes it.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Version string

	State      *state.Store
	Remote     remote.ProfileService
	Feed       *notify.Feed
	Toaster    notify.Toaster
	Dispatcher *notify.Dispatcher
	Permission *permission.Handshake
	Scheduler  *reminder.Scheduler
	Sync       *settingsync.Pipeline
	Bootstrap  *bootstrap.Sequencer
	Doses      *health.Store

	desktop *notify.Desktop
	result  bootstrap.Result
}

func New(cfg *config.Config, st *store.Store, logger *zap.Logger, m *metrics.Metrics, version string, opts Options) (*App, error) {
	if m == nil {
		m = metrics.Default()
	}
	if opts.Remote == nil {
		opts.Remote = remote.Offline{}
	}
	if opts.Desktop != nil && !opts.System.IsAvailable() {
		opts.System = opts.Desktop.Capability()
	}
	if opts.Platform == nil {
		opts.Platform = permission.NewDesktop(opts.System.IsAvailable())
	}

	doses, err := health.NewStore(st.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to open dose log: %w", err)
	}

	app := &App{
		Config:  cfg,
		Store:   st,
		Logger:  logger,
		Metrics: m,
		Version: version,
		State:   state.NewStore(state.Initial()),
		Remote:  opts.Remote,
		Feed:    notify.NewFeed(50),
		Doses:   doses,
		desktop: opts.Desktop,
	}
	app.Toaster = notify.Multi{app.Feed, notify.NewLogToaster(logger)}

	app.Permission = permission.New(opts.Platform, app.Toaster, cfg.Reminders.PermissionDelay, logger)

	app.Dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		System:        opts.System,
		Haptic:        opts.Haptic,
		Toaster:       app.Toaster,
		Gate:          app.Permission,
		ToastDuration: cfg.Reminders.ToastDuration,
		Metrics:       m,
		Logger:        logger,
	})
	app.Dispatcher.OnAction(app.handleReminderAction)

	app.Scheduler = reminder.New(app.State, st, app.Dispatcher, reminder.Config{
		Snooze:        cfg.Reminders.Snooze,
		RetentionDays: cfg.Reminders.MarkerRetentionDays,
	}, m, logger)

	app.Sync = settingsync.New(app.Remote, st, cfg.Sync.Debounce, m, logger)

	app.Bootstrap = bootstrap.New(app.Remote, st, app.State, app.Toaster, opts.Ambient, bootstrap.Config{
		ProbeTimeout: cfg.Remote.ProbeTimeout,
		WelcomeDelay: cfg.Reminders.WelcomeDelay,
	}, m, logger)

	app.State.Subscribe(app.onStateChange)
	return app, nil
}

// onStateChange re-evaluates every condition-owned timer after a state swap
func (app *App) onStateChange(prev, next state.AppState) {
	if next.IsInitialized && (!prev.IsInitialized || prev.Settings != next.Settings) {
		app.Sync.Notify(next.Settings)
	}
	if prev.RemindersEligible() != next.RemindersEligible() ||
		!equalMedications(prev.Profile.Medications, next.Profile.Medications) {
		app.Scheduler.Reconcile()
	}
	if prev.Settings.MedicationReminders != next.Settings.MedicationReminders {
		app.Permission.Reconcile(next.Settings.MedicationReminders)
	}
}

func equalMedications(a, b []health.Medication) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].IsActive != b[i].IsActive || len(a[i].Times) != len(b[i].Times) {
			return false
		}
		for j := range a[i].Times {
			if a[i].Times[j] != b[i].Times[j] {
				return false
			}
		}
	}
	return true
}

// Start runs the bootstrap sequence and then arms the reminder machinery
func (app *App) Start(ctx context.Context) bootstrap.Result {
	app.Permission.Reconcile(app.State.Snapshot().Settings.MedicationReminders)
	app.result = app.Bootstrap.Run(ctx)
	app.Scheduler.Reconcile()
	return app.result
}

// Stop tears down timers, dismisses waiting desktop alerts and waits for an
// in-flight settings save
func (app *App) Stop() {
	app.Permission.Stop()
	app.Scheduler.Stop()
	if app.desktop != nil {
		app.desktop.Close()
	}
	app.Sync.Stop()
}

// Result returns the bootstrap outcome
func (app *App) Result() bootstrap.Result {
	return app.result
}

// RunServer starts the runtime, the control API and the settings watcher,
// and blocks until SIGINT or SIGTERM.
func (app *App) RunServer() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := app.Start(ctx)
	app.Logger.Info("SkySense started",
		zap.String("version", app.Version),
		zap.String("mode", string(res.Mode)),
		zap.Bool("reminders_armed", app.Scheduler.Armed()),
	)

	var server *api.Server
	if app.Config.Server.Enabled {
		server = api.New(app.Config, app, app.Metrics, app.Logger)
		go func() {
			if err := server.Start(); err != nil {
				app.Logger.Fatal("Server error", zap.Error(err))
			}
		}()
		app.Logger.Info("Server started",
			zap.String("address", app.Config.Server.Address),
			zap.Int("port", app.Config.Server.Port),
			zap.String("url", fmt.Sprintf("http://%s:%d", app.Config.Server.Address, app.Config.Server.Port)),
		)
	}

	var watcher *watch.Watcher
	if app.Config.Watch.Enabled && app.Config.Watch.SettingsFile != "" {
		w, err := watch.New(app.Config.Watch.SettingsFile, func(p health.SettingsPatch) {
			app.UpdateSettings(p)
		}, app.Logger)
		if err != nil {
			app.Logger.Warn("Settings watcher disabled", zap.Error(err))
		} else {
			watcher = w
			go watcher.Run(ctx)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("Shutting down...")
	cancel()

	if watcher != nil {
		watcher.Close()
	}
	if server != nil {
		if err := server.Shutdown(); err != nil {
			app.Logger.Error("Server shutdown error", zap.Error(err))
		}
	}
	app.Stop()
}

// RemindersArmed reports whether the reminder minute timer is running
func (app *App) RemindersArmed() bool {
	return app.Scheduler.Armed()
}

// PermissionState reports the notification permission handshake state
func (app *App) PermissionState() string {
	return string(app.Permission.State())
}
