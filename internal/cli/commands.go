package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/gmsas95/skysense/internal/api"
	"github.com/gmsas95/skysense/internal/app"
	"github.com/gmsas95/skysense/internal/config"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/store"
)

var Version = "dev"

// HandleStatusCommand prints the resolved configuration and local state
func HandleStatusCommand(out io.Writer, cfg *config.Config, st *store.Store) error {
	fmt.Fprintln(out, "SkySense Status")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Version: %s\n", Version)
	fmt.Fprintf(out, "Data:    %s\n", cfg.Storage.DataDir)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Remote:")
	if cfg.Offline() {
		fmt.Fprintln(out, "  Mode: offline (no remote.base_url)")
	} else {
		fmt.Fprintf(out, "  URL:     %s\n", cfg.Remote.BaseURL)
		fmt.Fprintf(out, "  API Key: %s\n", maskToken(cfg.Remote.APIKey))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Control API:")
	fmt.Fprintf(out, "  %s\n", enabledMark(cfg.Server.Enabled))
	if cfg.Server.Enabled {
		fmt.Fprintf(out, "  URL: http://%s:%d\n", cfg.Server.Address, cfg.Server.Port)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Local State:")
	profileID, ok, err := st.Get(store.KeyProfileID)
	if err != nil {
		return err
	}
	if !ok {
		profileID = "(none)"
	}
	onboarded, _, err := store.GetBool(st, store.KeyOnboardingComplete)
	if err != nil {
		return err
	}
	lastSync, ok, err := st.Get(store.KeyLastSync)
	if err != nil {
		return err
	}
	if !ok {
		lastSync = "never"
	}
	var profile health.UserProfile
	if _, err := store.GetJSON(st, store.KeyProfile, &profile); err != nil {
		return err
	}
	today, err := st.CountDispatched(health.DateString(time.Now()))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  Profile ID:  %s\n", profileID)
	fmt.Fprintf(out, "  Onboarded:   %t\n", onboarded)
	fmt.Fprintf(out, "  Last Sync:   %s\n", lastSync)
	fmt.Fprintf(out, "  Medications: %d active\n", len(profile.ActiveMedications()))
	fmt.Fprintf(out, "  Reminders sent today: %d\n", today)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run 'skysense doctor' for diagnostics")
	return nil
}

// HandleDoctorCommand checks the host for what the runtime needs and returns
// the number of issues found.
func HandleDoctorCommand(out io.Writer, cfg *config.Config) int {
	fmt.Fprintln(out, "SkySense Diagnostics")
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out)

	issues := 0

	if _, err := os.Stat(cfg.Storage.DataDir); os.IsNotExist(err) {
		fmt.Fprintln(out, "❌ Data Directory: Does not exist")
		issues++
	} else {
		fmt.Fprintln(out, "✅ Data Directory: Exists")
	}

	if cfg.Offline() {
		fmt.Fprintln(out, "⚠️  Remote: Not configured, running offline-first")
		fmt.Fprintln(out, "   Set remote.base_url or SKYSENSE_REMOTE_BASE_URL")
		issues++
	} else {
		fmt.Fprintf(out, "✅ Remote: %s\n", cfg.Remote.BaseURL)
	}

	if _, err := exec.LookPath("notify-send"); err != nil {
		fmt.Fprintln(out, "⚠️  notify-send: Not found (system reminders disabled)")
		fmt.Fprintln(out, "   Install: sudo apt-get install libnotify-bin")
		issues++
	} else {
		fmt.Fprintln(out, "✅ notify-send: Found")
	}

	fmt.Fprintln(out)
	if issues == 0 {
		fmt.Fprintln(out, "✅ All checks passed!")
	} else {
		fmt.Fprintf(out, "⚠️  Found %d issue(s).\n", issues)
	}
	return issues
}

// HandleMarkersCommand manages reminder dispatch markers
func HandleMarkersCommand(out io.Writer, args []string, cfg *config.Config, st *store.Store) error {
	if len(args) == 0 {
		PrintMarkersHelp(out)
		return nil
	}

	switch args[0] {
	case "count":
		date := health.DateString(time.Now())
		if len(args) > 1 {
			date = args[1]
		}
		if _, err := health.ParseDate(date); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
		}
		n, err := st.CountDispatched(date)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d reminder(s) dispatched on %s\n", n, date)

	case "prune":
		days := cfg.Reminders.MarkerRetentionDays
		if len(args) > 1 {
			d, err := strconv.Atoi(args[1])
			if err != nil || d < 1 {
				return fmt.Errorf("days must be a positive integer, got %q", args[1])
			}
			days = d
		}
		cutoff := health.DateString(time.Now().AddDate(0, 0, -(days - 1)))
		n, err := st.PruneBefore(cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Pruned %d marker(s) dated before %s\n", n, cutoff)

	default:
		PrintMarkersHelp(out)
	}
	return nil
}

// HandleProfileCommand imports or shows the health profile
func HandleProfileCommand(ctx context.Context, out io.Writer, args []string, application *app.App) error {
	if len(args) == 0 {
		PrintProfileHelp(out)
		return nil
	}

	switch args[0] {
	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: skysense profile import <file.yaml>")
		}
		profile, err := app.LoadProfileFile(args[1])
		if err != nil {
			return err
		}
		id, synced, err := application.SaveProfile(ctx, profile)
		if err != nil {
			return err
		}
		if synced {
			fmt.Fprintf(out, "✓ Profile saved (id %s)\n", id)
		} else {
			fmt.Fprintf(out, "✓ Profile saved on device (id %s), will sync when connection is restored\n", id)
		}

	case "show":
		var profile health.UserProfile
		ok, err := store.GetJSON(application.Store, store.KeyProfile, &profile)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "No profile saved. Import one with: skysense profile import <file.yaml>")
			return nil
		}
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))

	default:
		PrintProfileHelp(out)
	}
	return nil
}

// HandleDosesCommand prints the dose log for a date
func HandleDosesCommand(out io.Writer, args []string, application *app.App) error {
	date := health.DateString(time.Now())
	if len(args) > 0 {
		date = args[0]
	}
	doses, adherence, err := application.DoseReport(date)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Doses on %s\n", date)
	fmt.Fprintln(out, "===================")
	if len(doses) == 0 {
		fmt.Fprintln(out, "No doses recorded")
	}
	for _, d := range doses {
		fmt.Fprintf(out, "  %s  %-20s %s\n", d.Time, d.MedicationName, d.Status)
	}
	fmt.Fprintf(out, "Adherence: %.0f%%\n", adherence)
	return nil
}

// HandleTokenCommand issues a bearer token for the control API
func HandleTokenCommand(out io.Writer, args []string, cfg *config.Config) error {
	ttl := 24 * time.Hour
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid ttl %q", args[0])
		}
		ttl = d
	}
	token, err := api.IssueToken(cfg.Security.JWTSecret, "cli", ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func enabledMark(enabled bool) string {
	if enabled {
		return "✅ enabled"
	}
	return "❌ disabled"
}

func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
