package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/skysense/internal/health"
)

func TestResolveScreen(t *testing.T) {
	assert.Equal(t, ScreenSettings, ResolveScreen("settings"))
	assert.Equal(t, ScreenHealthProfile, ResolveScreen("healthProfile"))
	assert.Equal(t, ScreenHome, ResolveScreen("nowhere"))
	assert.Equal(t, ScreenHome, ResolveScreen(""))
}

func TestSnapshotIsIsolated(t *testing.T) {
	st := NewStore(Initial())
	st.ReplaceProfile(health.UserProfile{Medications: []health.Medication{
		{ID: "m1", Name: "Inhaler", Times: []string{"08:00"}, IsActive: true},
	}})

	snap := st.Snapshot()
	snap.Profile.Medications[0].Times[0] = "09:00"
	snap.Settings.DarkMode = true

	again := st.Snapshot()
	assert.Equal(t, "08:00", again.Profile.Medications[0].Times[0])
	assert.False(t, again.Settings.DarkMode)
}

func TestUpdateNotifiesListeners(t *testing.T) {
	st := NewStore(Initial())

	var got []Screen
	st.Subscribe(func(prev, next AppState) {
		got = append(got, prev.Screen, next.Screen)
	})

	st.SetScreen(ScreenHome)
	require.Len(t, got, 2)
	assert.Equal(t, ScreenSplash, got[0])
	assert.Equal(t, ScreenHome, got[1])
}

func TestListenerMayUpdate(t *testing.T) {
	st := NewStore(Initial())
	st.Subscribe(func(prev, next AppState) {
		if next.Screen == ScreenOnboarding {
			st.SetScreen(ScreenHealthProfile)
		}
	})

	st.SetScreen(ScreenOnboarding)
	assert.Equal(t, ScreenHealthProfile, st.Snapshot().Screen)
}

func TestMergeSettings(t *testing.T) {
	st := NewStore(Initial())
	next := st.MergeSettings(health.SettingsPatch{MedicationReminders: health.Bool(false)})

	assert.False(t, next.Settings.MedicationReminders)
	assert.True(t, next.Settings.AutoRefresh)
}

func TestRemindersEligible(t *testing.T) {
	s := Initial()
	assert.False(t, s.RemindersEligible())

	s.IsInitialized = true
	assert.False(t, s.RemindersEligible(), "no medications")

	s.Profile.Medications = []health.Medication{{ID: "m1"}}
	assert.True(t, s.RemindersEligible())

	s.Settings.MedicationReminders = false
	assert.False(t, s.RemindersEligible())
}

func TestVoiceAssistantVisible(t *testing.T) {
	s := Initial()
	assert.False(t, s.VoiceAssistantVisible())

	s.Screen = ScreenHome
	assert.True(t, s.VoiceAssistantVisible())

	s.Settings.VoiceAssistant = false
	assert.False(t, s.VoiceAssistantVisible())
}

func TestConcurrentReaders(t *testing.T) {
	st := NewStore(Initial())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.MergeSettings(health.SettingsPatch{DarkMode: health.Bool(true)})
		}()
		go func() {
			defer wg.Done()
			_ = st.Snapshot()
		}()
	}
	wg.Wait()
	assert.True(t, st.Snapshot().Settings.DarkMode)
}
