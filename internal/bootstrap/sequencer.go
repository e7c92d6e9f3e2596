// Package bootstrap brings the application from cold start to an initialized,
// renderable state, even when the remote profile service is unreachable.
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/remote"
	"github.com/gmsas95/skysense/internal/state"
	"github.com/gmsas95/skysense/internal/store"
)

// Mode is the capability level the app started in
type Mode string

const (
	ModeOfflineFirst   Mode = "offline_first"
	ModeOnlineDegraded Mode = "online_degraded"
	ModeOnlineSynced   Mode = "online_synced"
)

// InitErrorMessage is recorded when initialization fails unexpectedly
const InitErrorMessage = "Failed to initialize app. Please refresh and try again."

// Result summarizes a bootstrap run
type Result struct {
	Mode      Mode          `json:"mode"`
	Reachable bool          `json:"reachable"`
	Returning bool          `json:"returning"`
	DarkMode  bool          `json:"darkMode"`
	Hydrated  bool          `json:"hydrated"`
	LastSync  string        `json:"lastSync,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Config holds the sequencer's timings
type Config struct {
	ProbeTimeout time.Duration
	WelcomeDelay time.Duration
}

// Sequencer runs the startup sequence exactly once
type Sequencer struct {
	remote  remote.ProfileService
	kv      store.KV
	state   *state.Store
	toaster notify.Toaster
	ambient Ambient
	config  Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	once   sync.Once
	result Result
}

// New creates a sequencer
func New(svc remote.ProfileService, kv store.KV, st *state.Store, toaster notify.Toaster, ambient Ambient, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Sequencer {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.WelcomeDelay <= 0 {
		cfg.WelcomeDelay = time.Second
	}
	if ambient == nil {
		ambient = ThemeAmbient{Theme: "auto"}
	}
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		remote:  svc,
		kv:      kv,
		state:   st,
		toaster: toaster,
		ambient: ambient,
		config:  cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes the startup sequence. Later calls return the first result.
func (s *Sequencer) Run(ctx context.Context) Result {
	s.once.Do(func() {
		s.result = s.run(ctx)
	})
	return s.result
}

func (s *Sequencer) run(ctx context.Context) (res Result) {
	start := s.now()
	s.logger.Info("Initializing SkySense")
	s.state.Update(func(next *state.AppState) {
		next.IsLoading = true
		next.Error = ""
	})

	defer func() {
		s.state.Update(func(next *state.AppState) {
			next.IsLoading = false
			next.IsInitialized = true
		})
		res.Duration = time.Since(start)
		s.metrics.RecordBootstrap(string(res.Mode))
		s.logger.Info("Initialization complete",
			zap.String("mode", string(res.Mode)),
			zap.Bool("returning", res.Returning),
			zap.Duration("duration", res.Duration),
		)
	}()

	if err := s.sequence(ctx, &res); err != nil {
		s.logger.Error("Failed to initialize app", zap.Error(err))
		res.Error = InitErrorMessage
		if res.Mode == "" {
			res.Mode = ModeOfflineFirst
		}
		s.state.Update(func(next *state.AppState) {
			next.Error = InitErrorMessage
			next.Screen = state.ScreenHome
		})
		s.toast(notify.Error("Initialization Error", "App started with limited functionality. Please restart if issues persist."))
	}
	return res
}

// sequence runs the ordered steps; panics become errors
func (s *Sequencer) sequence(ctx context.Context, res *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()

	res.Reachable = s.probe(ctx)
	res.Mode = ModeOnlineSynced
	if !res.Reachable {
		res.Mode = ModeOfflineFirst
		s.toast(notify.Info("Running in offline mode", "Some features may be limited until connection is restored."))
	}

	local, err := s.readLocal()
	if err != nil {
		return err
	}
	res.LastSync = local.lastSync

	dark := s.ambient.PrefersDark()
	if local.hasDarkMode {
		dark = local.darkMode
	}
	res.DarkMode = dark

	s.state.Update(func(next *state.AppState) {
		if local.profile != nil {
			next.Profile = local.profile.Normalize()
		}
		if local.settings != nil {
			next.Settings = *local.settings
		}
		next.IsDarkMode = dark
		next.Settings.DarkMode = dark
	})

	res.Returning = local.onboardingComplete && local.profileID != ""
	if !res.Returning {
		s.logger.Info("New user or incomplete onboarding, showing splash screen")
		return nil
	}

	s.logger.Info("Returning user detected", zap.Bool("reachable", res.Reachable))
	s.state.SetScreen(state.ScreenHome)

	// a failed probe only downgrades the mode; the data endpoints may still answer
	res.Hydrated = s.hydrate(ctx, local.profileID, dark)
	if !res.Hydrated && res.Reachable {
		res.Mode = ModeOnlineDegraded
	}
	return nil
}

// probe races the health check against the probe timeout
func (s *Sequencer) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.remote.HealthCheck(probeCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("Backend health check failed, running in offline mode", zap.Error(err))
			return false
		}
		s.logger.Info("Backend connection successful")
		return true
	case <-probeCtx.Done():
		s.logger.Warn("Backend health check timed out, running in offline mode",
			zap.Error(apperrors.WrapAs(apperrors.ErrProbeTimeout, probeCtx.Err())))
		return false
	}
}

type localSnapshot struct {
	hasDarkMode        bool
	darkMode           bool
	profileID          string
	onboardingComplete bool
	lastSync           string
	profile            *health.UserProfile
	settings           *health.AppSettings
}

func (s *Sequencer) readLocal() (localSnapshot, error) {
	var snap localSnapshot
	var err error

	if snap.darkMode, snap.hasDarkMode, err = store.GetBool(s.kv, store.KeyDarkMode); err != nil {
		return snap, err
	}
	if snap.profileID, _, err = s.kv.Get(store.KeyProfileID); err != nil {
		return snap, err
	}
	if snap.onboardingComplete, _, err = store.GetBool(s.kv, store.KeyOnboardingComplete); err != nil {
		return snap, err
	}
	if snap.lastSync, _, err = s.kv.Get(store.KeyLastSync); err != nil {
		return snap, err
	}

	var profile health.UserProfile
	if ok, err := store.GetJSON(s.kv, store.KeyProfile, &profile); err != nil {
		s.logger.Warn("Ignoring unreadable local profile", zap.Error(err))
	} else if ok {
		snap.profile = &profile
	}

	var settings health.AppSettings
	if ok, err := store.GetJSON(s.kv, store.KeySettings, &settings); err != nil {
		s.logger.Warn("Ignoring unreadable local settings", zap.Error(err))
	} else if ok {
		snap.settings = &settings
	}

	s.logger.Info("Loaded stored preferences",
		zap.Bool("dark_mode_set", snap.hasDarkMode),
		zap.Bool("profile_id_present", snap.profileID != ""),
		zap.Bool("onboarding_complete", snap.onboardingComplete),
		zap.String("last_sync", snap.lastSync),
	)
	return snap, nil
}

// hydrate fetches profile and settings independently and reports whether
// both fetches succeeded. Failures leave the local copy in place.
func (s *Sequencer) hydrate(ctx context.Context, profileID string, dark bool) bool {
	var g errgroup.Group

	g.Go(func() error {
		profile, err := s.remote.GetProfile(ctx, profileID)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		if profile == nil {
			s.logger.Info("No remote profile found, using local profile")
			return nil
		}

		next := s.state.ReplaceProfile(*profile)
		if err := store.SetJSON(s.kv, store.KeyProfile, next.Profile); err != nil {
			s.logger.Warn("Failed to persist hydrated profile", zap.Error(err))
		}
		s.logger.Info("User profile loaded", zap.Int("medications", len(next.Profile.Medications)))

		time.AfterFunc(s.config.WelcomeDelay, func() {
			s.toast(notify.Success("Welcome back to SkySense!", "Your health profile has been restored."))
		})
		return nil
	})

	g.Go(func() error {
		patch, err := s.remote.GetUserSettings(ctx, profileID)
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
		if patch == nil {
			s.logger.Info("No remote settings found, using local settings")
			return nil
		}
		s.applyRemoteSettings(*patch, dark)
		return nil
	})

	err := g.Wait()

	if err := s.kv.Set(store.KeyLastSync, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("Failed to stamp last sync", zap.Error(err))
	}

	if err != nil {
		s.logger.Warn("Failed to load user data", zap.Error(apperrors.WrapAs(apperrors.ErrHydration, err)))
		s.toast(notify.Warning("Sync Warning", "Could not sync latest data. Using local version."))
		return false
	}
	return true
}

// applyRemoteSettings merges remote settings over the local ones. The theme
// resolved at startup wins over the remote's darkMode.
func (s *Sequencer) applyRemoteSettings(patch health.SettingsPatch, dark bool) {
	if patch.MedicationReminders == nil {
		patch.MedicationReminders = health.Bool(true)
	}
	patch.DarkMode = health.Bool(dark)

	var themeChanged bool
	next := s.state.Update(func(next *state.AppState) {
		next.Settings = next.Settings.Apply(patch)
		if next.IsDarkMode != next.Settings.DarkMode {
			next.IsDarkMode = next.Settings.DarkMode
			themeChanged = true
		}
	})

	if themeChanged {
		s.logger.Info("Syncing dark mode with merged settings", zap.Bool("dark_mode", next.IsDarkMode))
		if err := store.SetBool(s.kv, store.KeyDarkMode, next.IsDarkMode); err != nil {
			s.logger.Warn("Failed to persist dark mode", zap.Error(err))
		}
	}
	if err := store.SetJSON(s.kv, store.KeySettings, next.Settings); err != nil {
		s.logger.Warn("Failed to persist hydrated settings", zap.Error(err))
	}
	s.logger.Info("App settings loaded")
}

func (s *Sequencer) toast(t notify.Toast) {
	if s.toaster != nil {
		s.toaster.Show(t)
	}
}
