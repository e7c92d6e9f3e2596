package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/screen"
	"github.com/gmsas95/skysense/internal/state"
	"github.com/gmsas95/skysense/internal/store"
)

// Snapshot returns the current application state
func (app *App) Snapshot() state.AppState {
	return app.State.Snapshot()
}

// View renders the active screen, falling back to the recovery view
func (app *App) View() screen.View {
	snap := app.State.Snapshot()
	return screen.Guard(snap.Screen, func() (screen.View, error) {
		return screen.Render(snap)
	}, app.Logger)
}

// SaveProfile stores the profile locally and remotely and returns the
// profile id and whether the remote accepted it. When the remote save fails
// a local identifier is fabricated so onboarding still completes.
func (app *App) SaveProfile(ctx context.Context, profile health.UserProfile) (string, bool, error) {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return "", false, err
	}

	app.State.Update(func(next *state.AppState) {
		next.IsLoading = true
		next.Profile = profile
	})
	defer app.State.Update(func(next *state.AppState) { next.IsLoading = false })

	if err := store.SetJSON(app.Store, store.KeyProfile, profile); err != nil {
		app.Logger.Warn("Failed to persist profile locally", zap.Error(err))
	}

	res, err := app.Remote.SaveProfile(ctx, profile)
	if err == nil && (res == nil || !res.Success) {
		err = apperrors.New(apperrors.ErrSaveFailed.Code, "profile save was not successful")
	}

	if err == nil {
		profileID := res.ID()
		if profileID != "" {
			app.setKey(store.KeyProfileID, profileID)
			app.setKey(store.KeyLastSync, time.Now().UTC().Format(time.RFC3339))
			app.Logger.Info("Profile ID stored", zap.String("profile_id", profileID))
		}
		app.setKey(store.KeyOnboardingComplete, "true")

		app.Toaster.Show(notify.Success("Profile saved successfully!", "Your health preferences have been updated."))
		app.Navigate(ctx, string(state.ScreenHome))
		return profileID, true, nil
	}

	app.Logger.Warn("Failed to save profile, keeping it on device", zap.Error(err))
	fallback := LocalProfileID(time.Now())
	app.setKey(store.KeyProfileID, fallback)
	app.setKey(store.KeyOnboardingComplete, "true")

	app.Toaster.Show(notify.Warning("Saved locally", "Profile saved on device. Will sync when connection is restored."))
	app.Navigate(ctx, string(state.ScreenHome))
	return fallback, false, nil
}

// LocalProfileID fabricates an offline profile identifier
func LocalProfileID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("local_profile_%d_%s", now.UnixMilli(), suffix)
}

// ToggleDarkMode flips the theme and persists the choice
func (app *App) ToggleDarkMode(ctx context.Context) bool {
	next := app.State.Update(func(next *state.AppState) {
		next.IsDarkMode = !next.IsDarkMode
		next.Settings.DarkMode = next.IsDarkMode
	})

	if err := store.SetBool(app.Store, store.KeyDarkMode, next.IsDarkMode); err != nil {
		app.Logger.Warn("Failed to persist dark mode", zap.Error(err))
	}
	app.persistSettings(next.Settings)
	app.Dispatcher.Pulse(ctx, notify.PatternToggle)

	mode := "Light"
	if next.IsDarkMode {
		mode = "Dark"
	}
	app.Toaster.Show(notify.Success(mode+" mode enabled", "Theme preference saved"))
	return next.IsDarkMode
}

// UpdateSettings merges a partial settings change and persists it locally.
// The remote copy follows through the sync pipeline.
func (app *App) UpdateSettings(patch health.SettingsPatch) health.AppSettings {
	if patch.IsEmpty() {
		return app.State.Snapshot().Settings
	}
	next := app.State.MergeSettings(patch)
	app.persistSettings(next.Settings)
	return next.Settings
}

// Navigate switches the active screen; unknown names go home
func (app *App) Navigate(ctx context.Context, name string) state.Screen {
	target := state.ResolveScreen(name)
	app.Dispatcher.Pulse(ctx, notify.PatternTick)
	app.State.SetScreen(target)
	app.Logger.Debug("Navigated", zap.String("screen", string(target)))
	return target
}

// MarkTaken acknowledges a reminder and records the dose
func (app *App) MarkTaken(occ health.Occurrence) error {
	med, err := app.medication(occ.MedicationID)
	if err != nil {
		return err
	}
	if err := app.Scheduler.Acknowledge(occ); err != nil {
		return err
	}
	if _, err := app.Doses.RecordDose(app.profileID(), med, occ, health.DoseTaken); err != nil {
		app.Logger.Warn("Failed to record dose", zap.Error(err))
	}
	app.Toaster.Show(notify.Success(med.Name+" marked as taken", ""))
	return nil
}

// Snooze re-dispatches a reminder after the snooze interval
func (app *App) Snooze(occ health.Occurrence) error {
	med, err := app.medication(occ.MedicationID)
	if err != nil {
		return err
	}
	if err := app.Scheduler.Snooze(notify.Reminder{Medication: med, Occurrence: occ}); err != nil {
		return apperrors.Wrap(err, apperrors.ErrBadRequest.Code, "cannot snooze")
	}
	if _, err := app.Doses.RecordDose(app.profileID(), med, occ, health.DoseSnoozed); err != nil {
		app.Logger.Warn("Failed to record snooze", zap.Error(err))
	}
	app.Toaster.Show(notify.Info("Reminder snoozed",
		fmt.Sprintf("We'll remind you about %s again in %s", med.Name, app.Config.Reminders.Snooze)))
	return nil
}

// DoseReport returns the dose log for a date with the day's adherence
func (app *App) DoseReport(date string) ([]health.DoseLog, float64, error) {
	if _, err := health.ParseDate(date); err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrBadRequest.Code, "invalid date")
	}
	logs, err := app.Doses.ListDoses(date)
	if err != nil {
		return nil, 0, err
	}

	scheduled := 0
	for _, m := range app.State.Snapshot().Profile.ActiveMedications() {
		scheduled += len(m.Times)
	}
	adherence, err := app.Doses.Adherence(date, scheduled)
	if err != nil {
		return nil, 0, err
	}
	return logs, adherence, nil
}

// Toasts returns the visible in-app toasts
func (app *App) Toasts() []notify.Toast {
	return app.Feed.List()
}

// InvokeToast runs a toast's action button
func (app *App) InvokeToast(id string) error {
	return app.Feed.Invoke(id)
}

func (app *App) handleReminderAction(action string, r notify.Reminder) {
	var err error
	switch action {
	case notify.ActionTaken:
		err = app.MarkTaken(r.Occurrence)
	case notify.ActionSnooze:
		err = app.Snooze(r.Occurrence)
	default:
		app.Logger.Debug("Ignoring unknown reminder action", zap.String("action", action))
		return
	}
	if err != nil {
		app.Logger.Warn("Reminder action failed", zap.String("action", action), zap.Error(err))
	}
}

func (app *App) medication(id string) (health.Medication, error) {
	for _, m := range app.State.Snapshot().Profile.Medications {
		if m.ID == id {
			return m, nil
		}
	}
	return health.Medication{}, apperrors.New(apperrors.ErrNotFound.Code, "medication not found: "+id)
}

func (app *App) profileID() string {
	id, _, err := app.Store.Get(store.KeyProfileID)
	if err != nil {
		app.Logger.Warn("Failed to read profile id", zap.Error(err))
	}
	return id
}

func (app *App) persistSettings(s health.AppSettings) {
	if err := store.SetJSON(app.Store, store.KeySettings, s); err != nil {
		app.Logger.Warn("Failed to persist settings locally", zap.Error(err))
	}
}

func (app *App) setKey(key, value string) {
	if err := app.Store.Set(key, value); err != nil {
		app.Logger.Warn("Failed to persist key", zap.String("key", key), zap.Error(err))
	}
}

// LoadProfileFile reads a YAML health profile
func LoadProfileFile(path string) (health.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return health.UserProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	var profile health.UserProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return health.UserProfile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return health.UserProfile{}, err
	}
	return profile, nil
}
