// Package state holds the single owned application state. Readers always get
// a fully merged copy; writers replace the whole value.
package state

import (
	"sync"

	"github.com/gmsas95/skysense/internal/health"
)

// Screen is the logical screen the presentation layer should show
type Screen string

const (
	ScreenSplash        Screen = "splash"
	ScreenOnboarding    Screen = "onboarding"
	ScreenHealthProfile Screen = "healthProfile"
	ScreenHome          Screen = "home"
	ScreenParks         Screen = "parks"
	ScreenAlerts        Screen = "alerts"
	ScreenForecast      Screen = "forecast"
	ScreenSettings      Screen = "settings"
	ScreenNotifications Screen = "notifications"
	ScreenTrends        Screen = "trends"
	ScreenProfile       Screen = "profile"
	ScreenCommunity     Screen = "community"
	ScreenEco           Screen = "eco"
	ScreenBadges        Screen = "badges"
)

var knownScreens = map[Screen]struct{}{
	ScreenSplash: {}, ScreenOnboarding: {}, ScreenHealthProfile: {}, ScreenHome: {},
	ScreenParks: {}, ScreenAlerts: {}, ScreenForecast: {}, ScreenSettings: {},
	ScreenNotifications: {}, ScreenTrends: {}, ScreenProfile: {}, ScreenCommunity: {},
	ScreenEco: {}, ScreenBadges: {},
}

// ResolveScreen maps unknown screen names to home
func ResolveScreen(name string) Screen {
	s := Screen(name)
	if _, ok := knownScreens[s]; ok {
		return s
	}
	return ScreenHome
}

// AppState is the application's in-memory view
type AppState struct {
	Screen        Screen             `json:"currentScreen"`
	IsDarkMode    bool               `json:"isDarkMode"`
	Profile       health.UserProfile `json:"userProfile"`
	Settings      health.AppSettings `json:"appSettings"`
	IsInitialized bool               `json:"isInitialized"`
	IsLoading     bool               `json:"isLoading"`
	Error         string             `json:"error,omitempty"`
}

// Initial returns the state before bootstrap
func Initial() AppState {
	return AppState{
		Screen:   ScreenSplash,
		Profile:  health.DefaultProfile(),
		Settings: health.DefaultSettings(),
	}
}

func (s AppState) clone() AppState {
	s.Profile = s.Profile.Clone()
	return s
}

// VoiceAssistantVisible reports whether the voice assistant overlay is shown
func (s AppState) VoiceAssistantVisible() bool {
	return s.Screen != ScreenSplash && s.Screen != ScreenOnboarding && s.Settings.VoiceAssistant
}

// RemindersEligible reports whether the reminder scheduler should be armed
func (s AppState) RemindersEligible() bool {
	return s.IsInitialized && s.Settings.MedicationReminders && len(s.Profile.Medications) > 0
}

// Listener observes state replacements
type Listener func(prev, next AppState)

// Store owns the AppState
type Store struct {
	mu        sync.RWMutex
	cur       AppState
	listeners []Listener
}

// NewStore creates a store holding initial
func NewStore(initial AppState) *Store {
	return &Store{cur: initial.clone()}
}

// Snapshot returns a deep copy of the current state
func (s *Store) Snapshot() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.clone()
}

// Subscribe registers l to be called after every replacement
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Update applies fn to a copy of the state and swaps it in. Listeners run
// after the swap, outside the lock, and may call Update themselves.
func (s *Store) Update(fn func(next *AppState)) AppState {
	s.mu.Lock()
	prev := s.cur
	next := prev.clone()
	fn(&next)
	s.cur = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev.clone(), next.clone())
	}
	return next.clone()
}

// SetScreen switches the active logical screen
func (s *Store) SetScreen(screen Screen) AppState {
	return s.Update(func(next *AppState) { next.Screen = screen })
}

// MergeSettings applies a settings patch
func (s *Store) MergeSettings(p health.SettingsPatch) AppState {
	return s.Update(func(next *AppState) { next.Settings = next.Settings.Apply(p) })
}

// ReplaceProfile swaps in a new profile
func (s *Store) ReplaceProfile(p health.UserProfile) AppState {
	p = p.Normalize()
	return s.Update(func(next *AppState) { next.Profile = p })
}
