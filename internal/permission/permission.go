// Package permission runs the one-shot system notification permission handshake.
package permission

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/notify"
)

// PlatformState is the host's answer for system notification permission
type PlatformState string

const (
	PlatformDefault PlatformState = "default"
	PlatformGranted PlatformState = "granted"
	PlatformDenied  PlatformState = "denied"
)

// Platform is the host permission surface
type Platform interface {
	State() PlatformState
	Request(ctx context.Context) (PlatformState, error)
}

// State is the handshake's position
type State string

const (
	Unrequested State = "unrequested"
	Requested   State = "requested"
	Granted     State = "granted"
	Denied      State = "denied"
)

// Handshake asks for permission once per session, a short delay after
// reminders become enabled. Granted and Denied are terminal.
type Handshake struct {
	platform Platform
	toaster  notify.Toaster
	delay    time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	timer *time.Timer
	done  chan struct{}
}

// New creates a handshake in the Unrequested state
func New(platform Platform, toaster notify.Toaster, delay time.Duration, logger *zap.Logger) *Handshake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handshake{
		platform: platform,
		toaster:  toaster,
		delay:    delay,
		timeout:  2 * time.Minute,
		logger:   logger,
		state:    Unrequested,
		done:     make(chan struct{}),
	}
}

// State returns the current handshake state
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Granted reports whether system notifications may be shown
func (h *Handshake) Granted() bool {
	if h.State() == Granted {
		return true
	}
	return h.platform.State() == PlatformGranted
}

// Done is closed once the handshake reaches a terminal state
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Reconcile arms or cancels the pending request as the reminder flag changes
func (h *Handshake) Reconcile(remindersEnabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != Unrequested {
		return
	}

	if !remindersEnabled {
		if h.timer != nil {
			h.timer.Stop()
			h.timer = nil
		}
		return
	}

	if h.timer != nil {
		return
	}

	switch h.platform.State() {
	case PlatformGranted:
		h.finishLocked(Granted)
		return
	case PlatformDenied:
		h.finishLocked(Denied)
		return
	}

	h.timer = time.AfterFunc(h.delay, h.request)
}

// Stop cancels a pending request
func (h *Handshake) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *Handshake) request() {
	h.mu.Lock()
	if h.state != Unrequested || h.timer == nil {
		h.mu.Unlock()
		return
	}
	h.timer = nil
	h.state = Requested
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	answer, err := h.platform.Request(ctx)
	if err != nil {
		h.logger.Warn("Notification permission request failed", zap.Error(err))
		answer = PlatformDenied
	}
	h.logger.Info("Notification permission", zap.String("permission", string(answer)))

	h.mu.Lock()
	switch answer {
	case PlatformGranted:
		h.finishLocked(Granted)
	default:
		h.finishLocked(Denied)
	}
	final := h.state
	h.mu.Unlock()

	if h.toaster == nil {
		return
	}
	if final == Granted {
		h.toaster.Show(notify.Success("Notifications enabled", "You'll receive medication and health reminders"))
	} else if answer == PlatformDenied {
		h.toaster.Show(notify.Warning("Notifications blocked", "Enable notifications in system settings for reminders"))
	}
}

func (h *Handshake) finishLocked(s State) {
	h.state = s
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}
