package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/app"
	"github.com/gmsas95/skysense/internal/config"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/permission"
	"github.com/gmsas95/skysense/internal/remote"
	"github.com/gmsas95/skysense/internal/store"
)

func newTestEnv(t *testing.T) (*config.Config, *store.Store) {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	st, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return cfg, st
}

func TestEnabledMark(t *testing.T) {
	assert.Equal(t, "✅ enabled", enabledMark(true))
	assert.Equal(t, "❌ disabled", enabledMark(false))
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"1234567890", "1234...7890"},
		{"1234567890abcdef", "1234...cdef"},
		{"short", "***"},
		{"", "***"},
		{"1234567", "***"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, maskToken(tt.token), "maskToken(%q)", tt.token)
	}
}

func TestPrintFunctions(t *testing.T) {
	var out bytes.Buffer
	PrintExtendedHelp(&out)
	PrintMarkersHelp(&out)
	PrintProfileHelp(&out)
	assert.Contains(t, out.String(), "markers prune [days]")
	assert.Contains(t, out.String(), "import <file.yaml>")
}

func TestHandleStatusCommand(t *testing.T) {
	cfg, st := newTestEnv(t)
	require.NoError(t, st.Set(store.KeyProfileID, "p-1"))

	var out bytes.Buffer
	require.NoError(t, HandleStatusCommand(&out, cfg, st))
	assert.Contains(t, out.String(), "Profile ID:  p-1")
	assert.Contains(t, out.String(), "Last Sync:   never")
	assert.Contains(t, out.String(), "offline")
}

func TestHandleDoctorCommand(t *testing.T) {
	cfg, _ := newTestEnv(t)

	var out bytes.Buffer
	issues := HandleDoctorCommand(&out, cfg)
	assert.GreaterOrEqual(t, issues, 1, "offline remote is reported")
	assert.Contains(t, out.String(), "Remote: Not configured")
}

func TestHandleMarkersCommand(t *testing.T) {
	cfg, st := newTestEnv(t)
	today := health.DateString(time.Now())
	old := health.DateString(time.Now().AddDate(0, 0, -10))

	require.NoError(t, st.MarkDispatched(health.Occurrence{MedicationID: "m", Date: old, Time: "08:00"}))
	require.NoError(t, st.MarkDispatched(health.Occurrence{MedicationID: "m", Date: today, Time: "08:00"}))

	var out bytes.Buffer
	require.NoError(t, HandleMarkersCommand(&out, []string{"count", old}, cfg, st))
	assert.Contains(t, out.String(), "1 reminder(s) dispatched on "+old)

	out.Reset()
	require.NoError(t, HandleMarkersCommand(&out, []string{"prune", "3"}, cfg, st))
	assert.Contains(t, out.String(), "Pruned 1 marker(s)")

	n, err := st.CountDispatched(today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, HandleMarkersCommand(&out, []string{"prune", "zero"}, cfg, st))
	assert.Error(t, HandleMarkersCommand(&out, []string{"count", "today"}, cfg, st))
}

func TestHandleTokenCommand(t *testing.T) {
	cfg, _ := newTestEnv(t)

	var out bytes.Buffer
	require.NoError(t, HandleTokenCommand(&out, []string{"1h"}, cfg))

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Security.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Subject)

	assert.Error(t, HandleTokenCommand(&out, []string{"forever"}, cfg))
}

func TestTokenAcceptedByLaterLoad(t *testing.T) {
	t.Setenv("SKYSENSE_SECURITY_JWT_SECRET", "")
	t.Setenv("SKYSENSE_JWT_SECRET", "")
	dir := t.TempDir()

	cliCfg, err := config.Load("", dir)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, HandleTokenCommand(&out, nil, cliCfg))

	daemonCfg, err := config.Load("", dir)
	require.NoError(t, err)
	_, err = jwt.Parse(strings.TrimSpace(out.String()), func(*jwt.Token) (interface{}, error) {
		return []byte(daemonCfg.Security.JWTSecret), nil
	})
	assert.NoError(t, err)
}

func TestHandleProfileAndDoses(t *testing.T) {
	cfg, st := newTestEnv(t)
	application, err := app.New(cfg, st, zap.NewNop(), metrics.New(), "test", app.Options{
		Remote:   remote.NewMemory(),
		System:   notify.Unavailable[notify.Alert](),
		Platform: permission.NewDesktop(false),
	})
	require.NoError(t, err)
	t.Cleanup(application.Stop)

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`medications:
  - id: med-1
    name: Inhaler
    times: ["08:00"]
    isActive: true
`), 0o600))

	var out bytes.Buffer
	ctx := context.Background()
	require.NoError(t, HandleProfileCommand(ctx, &out, []string{"import", path}, application))
	assert.Contains(t, out.String(), "✓ Profile saved (id ")

	out.Reset()
	require.NoError(t, HandleProfileCommand(ctx, &out, []string{"show"}, application))
	assert.Contains(t, out.String(), `"name": "Inhaler"`)

	assert.Error(t, HandleProfileCommand(ctx, &out, []string{"import"}, application))

	out.Reset()
	require.NoError(t, HandleDosesCommand(&out, []string{"2026-03-01"}, application))
	assert.Contains(t, out.String(), "No doses recorded")
	assert.Contains(t, out.String(), "Adherence: 0%")
}
