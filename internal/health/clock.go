package health

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gmsas95/skysense/internal/errors"
)

const dateLayout = "2006-01-02"

// ParseClock parses a 24-hour "HH:MM" string
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || !twoDigits(parts[0]) || !twoDigits(parts[1]) {
		return 0, 0, apperrors.WrapAs(apperrors.ErrInvalidTime, fmt.Errorf("%q is not HH:MM", s))
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, apperrors.WrapAs(apperrors.ErrInvalidTime, fmt.Errorf("%q has invalid hour", s))
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, apperrors.WrapAs(apperrors.ErrInvalidTime, fmt.Errorf("%q has invalid minute", s))
	}
	return hour, minute, nil
}

// Atoi alone would let signs like "+1" through
func twoDigits(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ClockString formats t as local wall-clock "HH:MM", truncated to the minute
func ClockString(t time.Time) string {
	return t.Format("15:04")
}

// DateString formats t as a local calendar date
func DateString(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD date in the local timezone
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.Local)
}
