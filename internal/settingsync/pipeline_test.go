package settingsync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/remote"
	"github.com/gmsas95/skysense/internal/store"
)

func setup(t *testing.T, profileID string) (*Pipeline, *remote.Memory) {
	t.Helper()
	kv, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	if profileID != "" {
		require.NoError(t, kv.Set(store.KeyProfileID, profileID))
	}

	mem := remote.NewMemory()
	p := New(mem, kv, 30*time.Millisecond, metrics.New(), zap.NewNop())
	t.Cleanup(p.Stop)
	return p, mem
}

func TestPipeline_CoalescesBurst(t *testing.T) {
	p, mem := setup(t, "profile-1")

	settings := health.DefaultSettings()
	for i := 0; i < 5; i++ {
		settings.CommunityUpdates = i%2 == 0
		settings.AutoRefresh = i == 4
		p.Notify(settings)
	}

	require.Eventually(t, func() bool { return len(mem.SettingsSaves()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	saves := mem.SettingsSaves()
	require.Len(t, saves, 1)
	assert.Equal(t, "profile-1", saves[0].ProfileID)
	assert.Equal(t, settings, saves[0].Settings)
	assert.False(t, p.Pending())
}

func TestPipeline_SkipsWithoutProfileID(t *testing.T) {
	p, mem := setup(t, "")

	p.Notify(health.DefaultSettings())
	assert.True(t, p.Pending())

	assert.Eventually(t, func() bool { return !p.Pending() }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, mem.SettingsSaves())
}

func TestPipeline_ProfileID(t *testing.T) {
	p, _ := setup(t, "")
	_, err := p.profileID()
	assert.ErrorIs(t, err, apperrors.ErrNoProfileID)

	require.NoError(t, p.kv.Set(store.KeyProfileID, "profile-9"))
	id, err := p.profileID()
	require.NoError(t, err)
	assert.Equal(t, "profile-9", id)
}

func TestPipeline_FailedSaveIsDroppedUntilNextChange(t *testing.T) {
	p, mem := setup(t, "profile-1")
	mem.SetFaults(remote.Faults{SaveSettings: errors.New("offline")})

	p.Notify(health.DefaultSettings())
	require.Eventually(t, func() bool { return len(mem.SettingsSaves()) == 1 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, mem.SettingsSaves(), 1, "failed saves are not retried")

	mem.SetFaults(remote.Faults{})
	p.Notify(health.DefaultSettings())
	assert.Eventually(t, func() bool { return len(mem.SettingsSaves()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_SeparateWindowsSaveSeparately(t *testing.T) {
	p, mem := setup(t, "profile-1")

	p.Notify(health.DefaultSettings())
	require.Eventually(t, func() bool { return len(mem.SettingsSaves()) == 1 }, 2*time.Second, 5*time.Millisecond)

	p.Notify(health.DefaultSettings())
	assert.Eventually(t, func() bool { return len(mem.SettingsSaves()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_StopCancelsPending(t *testing.T) {
	p, mem := setup(t, "profile-1")

	p.Notify(health.DefaultSettings())
	p.Stop()
	time.Sleep(80 * time.Millisecond)

	assert.Empty(t, mem.SettingsSaves())

	p.Notify(health.DefaultSettings())
	assert.False(t, p.Pending())
}
