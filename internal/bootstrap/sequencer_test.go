package bootstrap

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/remote"
	"github.com/gmsas95/skysense/internal/state"
	"github.com/gmsas95/skysense/internal/store"
)

type countingService struct {
	*remote.Memory
	probes atomic.Int32
}

func (c *countingService) HealthCheck(ctx context.Context) error {
	c.probes.Add(1)
	return c.Memory.HealthCheck(ctx)
}

type env struct {
	svc   *countingService
	kv    *store.Store
	state *state.Store
	feed  *notify.Feed
	seq   *Sequencer
}

func newEnv(t *testing.T, ambientDark bool) *env {
	t.Helper()
	kv, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	e := &env{
		svc:   &countingService{Memory: remote.NewMemory()},
		kv:    kv,
		state: state.NewStore(state.Initial()),
		feed:  notify.NewFeed(20),
	}
	e.seq = New(e.svc, kv, e.state, e.feed, AmbientFunc(func() bool { return ambientDark }), Config{
		ProbeTimeout: 50 * time.Millisecond,
		WelcomeDelay: 5 * time.Millisecond,
	}, metrics.New(), zap.NewNop())
	return e
}

func (e *env) returning(t *testing.T, profileID string) {
	t.Helper()
	require.NoError(t, e.kv.Set(store.KeyProfileID, profileID))
	require.NoError(t, store.SetBool(e.kv, store.KeyOnboardingComplete, true))
}

func (e *env) toastTitles() []string {
	var out []string
	for _, t := range e.feed.List() {
		out = append(out, t.Title)
	}
	return out
}

func TestRun_ProbeNeverResolves(t *testing.T) {
	e := newEnv(t, false)
	e.svc.SetFaults(remote.Faults{HangHealthCheck: true})

	start := time.Now()
	res := e.seq.Run(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.Reachable)
	assert.Equal(t, ModeOfflineFirst, res.Mode)

	snap := e.state.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.False(t, snap.IsLoading)
	assert.NotEmpty(t, snap.Screen)
	assert.Contains(t, e.toastTitles(), "Running in offline mode")
}

func TestRun_NewUserNoHydration(t *testing.T) {
	e := newEnv(t, false)
	e.svc.SetFaults(remote.Faults{GetProfile: errors.New("must not be called")})

	res := e.seq.Run(context.Background())

	assert.True(t, res.Reachable)
	assert.False(t, res.Returning)
	assert.False(t, res.Hydrated)
	assert.Equal(t, ModeOnlineSynced, res.Mode)
	assert.Equal(t, state.ScreenSplash, e.state.Snapshot().Screen)

	_, ok, err := e.kv.Get(store.KeyLastSync)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.toastTitles())
}

func TestRun_OnboardingIncompleteIsNewUser(t *testing.T) {
	e := newEnv(t, false)
	require.NoError(t, e.kv.Set(store.KeyProfileID, "p1"))

	res := e.seq.Run(context.Background())
	assert.False(t, res.Returning)
	assert.Equal(t, state.ScreenSplash, e.state.Snapshot().Screen)
}

func TestRun_ReturningUserOffline(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	local := health.UserProfile{
		HasAsthma:   true,
		Medications: []health.Medication{{ID: "m1", Name: "Inhaler", Times: []string{"08:00"}, IsActive: true}},
	}
	require.NoError(t, store.SetJSON(e.kv, store.KeyProfile, local))
	e.svc.SetFaults(remote.Faults{HealthCheck: errors.New("connection refused")})

	res := e.seq.Run(context.Background())

	assert.True(t, res.Returning)
	assert.False(t, res.Reachable)
	assert.True(t, res.Hydrated, "nothing stored remotely is not a failure")
	assert.Equal(t, ModeOfflineFirst, res.Mode)

	snap := e.state.Snapshot()
	assert.Equal(t, state.ScreenHome, snap.Screen)
	assert.True(t, snap.IsInitialized)
	assert.Equal(t, local, snap.Profile)
	assert.Contains(t, e.toastTitles(), "Running in offline mode")
}

func TestRun_FailedHealthCheckStillHydrates(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	remoteProfile := health.UserProfile{
		HasAsthma:   true,
		Medications: []health.Medication{{ID: "m1", Name: "Inhaler", Times: []string{"08:00"}, IsActive: true}},
	}
	e.svc.PutProfile("p1", remoteProfile)
	e.svc.PutSettings("p1", health.SettingsPatch{CommunityUpdates: health.Bool(true)})
	e.svc.SetFaults(remote.Faults{HealthCheck: errors.New("503 from /health")})

	res := e.seq.Run(context.Background())

	assert.False(t, res.Reachable)
	assert.True(t, res.Hydrated)
	assert.Equal(t, ModeOfflineFirst, res.Mode)

	snap := e.state.Snapshot()
	assert.True(t, snap.Profile.HasAsthma)
	assert.Len(t, snap.Profile.Medications, 1)
	assert.True(t, snap.Settings.CommunityUpdates)

	_, ok, err := e.kv.Get(store.KeyLastSync)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, e.toastTitles(), "Sync Warning")
}

func TestRun_RemoteFullyDownKeepsLocal(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	local := health.UserProfile{Medications: []health.Medication{{ID: "m1", Name: "Inhaler", Times: []string{"08:00"}, IsActive: true}}}
	require.NoError(t, store.SetJSON(e.kv, store.KeyProfile, local))
	down := errors.New("connection refused")
	e.svc.SetFaults(remote.Faults{HealthCheck: down, GetProfile: down, GetSettings: down})

	res := e.seq.Run(context.Background())

	assert.False(t, res.Hydrated)
	assert.Equal(t, ModeOfflineFirst, res.Mode, "an unreachable probe is never reported as degraded")
	assert.Equal(t, local, e.state.Snapshot().Profile)
	assert.Contains(t, e.toastTitles(), "Running in offline mode")
	assert.Contains(t, e.toastTitles(), "Sync Warning")
}

func TestRun_HydratesProfileAndSettings(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	require.NoError(t, store.SetBool(e.kv, store.KeyDarkMode, false))

	remoteProfile := health.UserProfile{
		HasPollenAllergy: true,
		Medications: []health.Medication{
			{ID: "a", Name: "A", Times: []string{"07:00"}, IsActive: true},
			{ID: "b", Name: "B", IsActive: true},
		},
	}
	e.svc.PutProfile("p1", remoteProfile)
	e.svc.PutSettings("p1", health.SettingsPatch{
		DarkMode:         health.Bool(true),
		CommunityUpdates: health.Bool(true),
		WeatherAlerts:    health.Bool(false),
	})

	res := e.seq.Run(context.Background())

	assert.True(t, res.Hydrated)
	assert.Equal(t, ModeOnlineSynced, res.Mode)

	snap := e.state.Snapshot()
	assert.Equal(t, state.ScreenHome, snap.Screen)
	require.Len(t, snap.Profile.Medications, 2)
	assert.Equal(t, "a", snap.Profile.Medications[0].ID)
	assert.Equal(t, []string{}, snap.Profile.Medications[1].Times)

	// local theme wins, unset medicationReminders defaults to true
	assert.False(t, snap.IsDarkMode)
	assert.False(t, snap.Settings.DarkMode)
	assert.True(t, snap.Settings.CommunityUpdates)
	assert.False(t, snap.Settings.WeatherAlerts)
	assert.True(t, snap.Settings.MedicationReminders)

	_, ok, err := e.kv.Get(store.KeyLastSync)
	require.NoError(t, err)
	assert.True(t, ok)

	var persisted health.AppSettings
	ok, err = store.GetJSON(e.kv, store.KeySettings, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.Settings, persisted)

	assert.Eventually(t, func() bool {
		for _, title := range e.toastTitles() {
			if title == "Welcome back to SkySense!" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestRun_RemoteMedicationRemindersFalseKept(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	e.svc.PutSettings("p1", health.SettingsPatch{MedicationReminders: health.Bool(false)})

	e.seq.Run(context.Background())
	assert.False(t, e.state.Snapshot().Settings.MedicationReminders)
}

func TestRun_ProfileFailureStillFetchesSettings(t *testing.T) {
	e := newEnv(t, false)
	e.returning(t, "p1")
	e.svc.PutSettings("p1", health.SettingsPatch{CommunityUpdates: health.Bool(true)})
	e.svc.SetFaults(remote.Faults{GetProfile: errors.New("500")})

	res := e.seq.Run(context.Background())

	assert.False(t, res.Hydrated)
	assert.Equal(t, ModeOnlineDegraded, res.Mode)
	assert.True(t, e.state.Snapshot().Settings.CommunityUpdates)
	assert.Equal(t, state.ScreenHome, e.state.Snapshot().Screen)
	assert.Contains(t, e.toastTitles(), "Sync Warning")

	_, ok, err := e.kv.Get(store.KeyLastSync)
	require.NoError(t, err)
	assert.True(t, ok, "last sync is stamped even when a fetch fails")
}

func TestRun_ThemeResolution(t *testing.T) {
	ambientDark := newEnv(t, true)
	res := ambientDark.seq.Run(context.Background())
	assert.True(t, res.DarkMode)
	assert.True(t, ambientDark.state.Snapshot().IsDarkMode)
	assert.True(t, ambientDark.state.Snapshot().Settings.DarkMode)

	storedLight := newEnv(t, true)
	require.NoError(t, store.SetBool(storedLight.kv, store.KeyDarkMode, false))
	res = storedLight.seq.Run(context.Background())
	assert.False(t, res.DarkMode)
	assert.False(t, storedLight.state.Snapshot().IsDarkMode)
}

type brokenKV struct{}

func (brokenKV) Get(string) (string, bool, error) { return "", false, errors.New("corrupt") }
func (brokenKV) Set(string, string) error         { return errors.New("corrupt") }
func (brokenKV) Delete(string) error              { return errors.New("corrupt") }

func TestRun_UnexpectedFailureStillInitializes(t *testing.T) {
	st := state.NewStore(state.Initial())
	feed := notify.NewFeed(10)
	seq := New(remote.NewMemory(), brokenKV{}, st, feed, nil, Config{ProbeTimeout: 50 * time.Millisecond}, metrics.New(), zap.NewNop())

	res := seq.Run(context.Background())

	assert.Equal(t, InitErrorMessage, res.Error)
	snap := st.Snapshot()
	assert.True(t, snap.IsInitialized)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, state.ScreenHome, snap.Screen)
	assert.Equal(t, InitErrorMessage, snap.Error)
	require.NotEmpty(t, feed.List())
	assert.Equal(t, notify.KindError, feed.List()[len(feed.List())-1].Kind)
}

type panickingAmbient struct{}

func (panickingAmbient) PrefersDark() bool { panic("display gone") }

func TestRun_PanicStillInitializes(t *testing.T) {
	kv, err := store.NewInMemory()
	require.NoError(t, err)
	defer kv.Close()

	st := state.NewStore(state.Initial())
	seq := New(remote.NewMemory(), kv, st, nil, panickingAmbient{}, Config{}, metrics.New(), zap.NewNop())

	res := seq.Run(context.Background())
	assert.Equal(t, InitErrorMessage, res.Error)
	assert.True(t, st.Snapshot().IsInitialized)
	assert.Equal(t, state.ScreenHome, st.Snapshot().Screen)
}

func TestRun_OnlyOnce(t *testing.T) {
	e := newEnv(t, false)

	first := e.seq.Run(context.Background())
	second := e.seq.Run(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), e.svc.probes.Load())
}

func TestThemeAmbient(t *testing.T) {
	envOf := func(kv map[string]string) func(string) string {
		return func(k string) string { return kv[k] }
	}

	tests := []struct {
		name  string
		theme string
		env   map[string]string
		want  bool
	}{
		{"forced dark", "dark", nil, true},
		{"forced light", "light", map[string]string{"GTK_THEME": "Adwaita:dark"}, false},
		{"gtk dark", "auto", map[string]string{"GTK_THEME": "Adwaita:dark"}, true},
		{"gtk light", "auto", map[string]string{"GTK_THEME": "Adwaita"}, false},
		{"colorfgbg dark", "auto", map[string]string{"COLORFGBG": "15;0"}, true},
		{"colorfgbg light", "auto", map[string]string{"COLORFGBG": "0;15"}, false},
		{"nothing", "auto", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ThemeAmbient{Theme: tt.theme, Getenv: envOf(tt.env)}
			assert.Equal(t, tt.want, a.PrefersDark())
		})
	}
}
