package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Alert is a system-level notification
type Alert struct {
	Title   string
	Body    string
	Tag     string
	Actions []AlertAction

	// Respond receives the id of the action the user picked
	Respond func(action string) `json:"-"`
}

// AlertAction is a button on a system notification
type AlertAction struct {
	ID    string
	Label string
}

// Haptic pulse patterns, alternating on and off durations
var (
	PatternReminder = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	PatternTick     = []time.Duration{10 * time.Millisecond}
	PatternToggle   = []time.Duration{5 * time.Millisecond}
)

// ErrDesktopClosed is returned by Send after Close
var ErrDesktopClosed = errors.New("desktop notifier closed")

// Desktop sends alerts through the freedesktop notify-send binary.
// Interactive alerts keep a notify-send process waiting for the user's
// choice; Close kills those processes.
type Desktop struct {
	path    string
	appName string
	wait    time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// LookupDesktop finds notify-send on PATH
func LookupDesktop(logger *zap.Logger) (*Desktop, bool) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return nil, false
	}
	return NewDesktop(path, logger), true
}

// NewDesktop uses the notify-send compatible binary at path
func NewDesktop(path string, logger *zap.Logger) *Desktop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Desktop{
		path:    path,
		appName: "SkySense",
		wait:    30 * time.Minute,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close kills pending interactive notifications and waits for them to exit.
// Their Respond callbacks are not called.
func (d *Desktop) Close() {
	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

// Capability exposes the notifier as a system notification sink
func (d *Desktop) Capability() Capability[Alert] {
	return Available(d.Send)
}

// Send shows the alert. When the alert has actions, the user's choice is
// delivered to Respond in the background.
func (d *Desktop) Send(ctx context.Context, a Alert) error {
	args := []string{"--app-name=" + d.appName, "--urgency=critical"}
	if a.Tag != "" {
		args = append(args, "--hint=string:x-dunst-stack-tag:"+a.Tag)
	}

	interactive := len(a.Actions) > 0 && a.Respond != nil
	if interactive {
		args = append(args, "--wait")
		for _, act := range a.Actions {
			args = append(args, fmt.Sprintf("--action=%s=%s", act.ID, act.Label))
		}
	}
	args = append(args, a.Title, a.Body)

	if !interactive {
		if d.ctx.Err() != nil {
			return ErrDesktopClosed
		}
		return exec.CommandContext(ctx, d.path, args...).Run()
	}

	d.mu.Lock()
	if d.ctx.Err() != nil {
		d.mu.Unlock()
		return ErrDesktopClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(d.ctx, d.wait)
	cmd := exec.CommandContext(waitCtx, d.path, args...)
	// children of a killed notify-send may hold stdout open
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Start(); err != nil {
		cancel()
		d.wg.Done()
		return err
	}

	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := cmd.Wait(); err != nil {
			d.logger.Debug("Notification closed without action", zap.String("tag", a.Tag), zap.Error(err))
			return
		}
		if d.ctx.Err() != nil {
			return
		}
		if action := strings.TrimSpace(out.String()); action != "" {
			a.Respond(action)
		}
	}()
	return nil
}
