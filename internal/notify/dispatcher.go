package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
)

// Reminder actions
const (
	ActionTaken  = "taken"
	ActionSnooze = "snooze"
)

// Channel names reported to metrics
const (
	ChannelSystem = "system"
	ChannelHaptic = "haptic"
	ChannelToast  = "toast"
)

// Reminder is one medication occurrence to deliver
type Reminder struct {
	Medication health.Medication
	Occurrence health.Occurrence
}

// Gate reports whether system notifications have been granted
type Gate interface {
	Granted() bool
}

// ActionHandler receives the user's response to a reminder
type ActionHandler func(action string, r Reminder)

// Report says which channels accepted a reminder
type Report struct {
	System bool
	Haptic bool
	Toast  bool
}

// Dispatcher fans a reminder out to every channel the host supports
type Dispatcher struct {
	system        Capability[Alert]
	haptic        Capability[[]time.Duration]
	toaster       Toaster
	gate          Gate
	toastDuration time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger

	mu      sync.RWMutex
	handler ActionHandler
}

// DispatcherConfig holds the sinks a Dispatcher writes to
type DispatcherConfig struct {
	System        Capability[Alert]
	Haptic        Capability[[]time.Duration]
	Toaster       Toaster
	Gate          Gate
	ToastDuration time.Duration
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Dispatcher{
		system:        cfg.System,
		haptic:        cfg.Haptic,
		toaster:       cfg.Toaster,
		gate:          cfg.Gate,
		toastDuration: cfg.ToastDuration,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

// OnAction sets the handler for "taken" and "snooze" responses
func (d *Dispatcher) OnAction(h ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

func (d *Dispatcher) respond(action string, r Reminder) {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()
	if h != nil {
		h(action, r)
	}
}

// Toast shows an in-app message
func (d *Dispatcher) Toast(t Toast) string {
	if d.toaster == nil {
		return ""
	}
	return d.toaster.Show(t)
}

// Pulse plays a haptic pattern if the host can
func (d *Dispatcher) Pulse(ctx context.Context, pattern []time.Duration) {
	if _, err := d.haptic.Send(ctx, pattern); err != nil {
		d.logger.Debug("Haptic pulse failed", zap.Error(err))
	}
}

// Dispatch delivers a reminder on every available channel. Failures of one
// channel never stop the others; the in-app toast is always shown.
func (d *Dispatcher) Dispatch(ctx context.Context, r Reminder) Report {
	var report Report
	med := r.Medication
	title := "Time for " + med.Name

	if d.gate == nil || d.gate.Granted() {
		sent, err := d.system.Send(ctx, Alert{
			Title: title,
			Body:  reminderBody(med, "Take %s as prescribed for your %s", "Take %s as prescribed"),
			Tag:   "medication-" + med.ID,
			Actions: []AlertAction{
				{ID: ActionTaken, Label: "Mark as Taken"},
				{ID: ActionSnooze, Label: "Remind in 5 min"},
			},
			Respond: func(action string) { d.respond(action, r) },
		})
		if err != nil {
			d.logger.Warn("System notification failed", zap.String("medication", med.Name), zap.Error(err))
		}
		report.System = sent
		if d.system.IsAvailable() {
			d.metrics.RecordChannel(ChannelSystem, sent)
		}
	}

	sent, err := d.haptic.Send(ctx, PatternReminder)
	if err != nil {
		d.logger.Debug("Haptic pulse failed", zap.Error(err))
	}
	report.Haptic = sent
	if d.haptic.IsAvailable() {
		d.metrics.RecordChannel(ChannelHaptic, sent)
	}

	if d.toaster != nil {
		d.toaster.Show(Info(title, reminderBody(med, "Take %s for your %s", "Take %s")).
			WithDuration(d.toastDuration).
			WithAction("Mark Taken", func() { d.respond(ActionTaken, r) }))
		report.Toast = true
	}
	d.metrics.RecordChannel(ChannelToast, report.Toast)

	d.logger.Info("Medication reminder sent",
		zap.String("medication", med.Name),
		zap.String("occurrence", r.Occurrence.String()),
		zap.Bool("system", report.System),
		zap.Bool("haptic", report.Haptic),
	)
	return report
}

func reminderBody(med health.Medication, withCondition, without string) string {
	if med.Condition == "" {
		return fmt.Sprintf(without, med.Dosage)
	}
	return fmt.Sprintf(withCondition, med.Dosage, med.Condition)
}
