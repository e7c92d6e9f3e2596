// Package screen produces the descriptor of the active screen and keeps a
// faulty screen from taking the whole app down.
package screen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/state"
)

// View describes what the presentation layer should render
type View struct {
	Screen         state.Screen `json:"screen"`
	Title          string       `json:"title"`
	DarkMode       bool         `json:"darkMode"`
	VoiceAssistant bool         `json:"voiceAssistant"`
	Loading        bool         `json:"loading"`
	Error          string       `json:"error,omitempty"`
	Recovery       bool         `json:"recovery"`
	Message        string       `json:"message,omitempty"`
	Action         string       `json:"action,omitempty"`
}

// Producer builds a view and may fail
type Producer func() (View, error)

var titles = map[state.Screen]string{
	state.ScreenSplash:        "Welcome to SkySense",
	state.ScreenOnboarding:    "Get Started",
	state.ScreenHealthProfile: "Health Profile",
	state.ScreenHome:          "Home",
	state.ScreenParks:         "Parks",
	state.ScreenAlerts:        "Alerts",
	state.ScreenForecast:      "Forecast",
	state.ScreenSettings:      "Settings",
	state.ScreenNotifications: "Notifications",
	state.ScreenTrends:        "Trends",
	state.ScreenProfile:       "Profile",
	state.ScreenCommunity:     "Community",
	state.ScreenEco:           "Eco",
	state.ScreenBadges:        "Badges",
}

// Render builds the view for the state's active screen
func Render(s state.AppState) (View, error) {
	title, ok := titles[s.Screen]
	if !ok {
		return View{}, fmt.Errorf("no view for screen %q", s.Screen)
	}
	return View{
		Screen:         s.Screen,
		Title:          title,
		DarkMode:       s.IsDarkMode,
		VoiceAssistant: s.VoiceAssistantVisible(),
		Loading:        !s.IsInitialized || s.IsLoading,
		Error:          s.Error,
	}, nil
}

// Recovery is the view shown in place of a screen that failed
func Recovery(screen state.Screen) View {
	return View{
		Screen:   screen,
		Title:    "Something went wrong",
		Message:  "We're sorry, but something unexpected happened.",
		Action:   "Refresh App",
		Recovery: true,
	}
}

// Guard runs render and replaces an error or panic with the recovery view
func Guard(screen state.Screen, render Producer, logger *zap.Logger) (view View) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Screen panicked", zap.String("screen", string(screen)), zap.Any("recover", r))
			view = Recovery(screen)
		}
	}()

	v, err := render()
	if err != nil {
		logger.Error("Screen failed", zap.String("screen", string(screen)), zap.Error(err))
		return Recovery(screen)
	}
	return v
}
