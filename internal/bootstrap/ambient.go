package bootstrap

import (
	"os"
	"strconv"
	"strings"
)

// Ambient reports the host environment's light or dark preference
type Ambient interface {
	PrefersDark() bool
}

// AmbientFunc adapts a function to Ambient
type AmbientFunc func() bool

func (f AmbientFunc) PrefersDark() bool { return f() }

// ThemeAmbient resolves the preference from the configured theme. "auto"
// inspects the desktop environment.
type ThemeAmbient struct {
	Theme  string
	Getenv func(string) string
}

func (a ThemeAmbient) PrefersDark() bool {
	switch a.Theme {
	case "dark":
		return true
	case "light":
		return false
	}

	getenv := a.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if theme := strings.ToLower(getenv("GTK_THEME")); theme != "" {
		return strings.HasSuffix(theme, ":dark") || strings.Contains(theme, "-dark")
	}

	// COLORFGBG is "fg;bg"; backgrounds 0-6 and 8 are dark
	if fgbg := getenv("COLORFGBG"); fgbg != "" {
		parts := strings.Split(fgbg, ";")
		if bg, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			return bg <= 6 || bg == 8
		}
	}
	return false
}
