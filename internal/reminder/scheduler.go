// Package reminder dispatches medication reminders at most once per
// (medication, day, minute).
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/notify"
	"github.com/gmsas95/skysense/internal/state"
)

// everyMinute fires at second zero of each minute
const everyMinute = "* * * * *"

// MarkerStore persists dispatch markers and acknowledgements
type MarkerStore interface {
	MarkDispatched(occ health.Occurrence) error
	IsDispatched(occ health.Occurrence) (bool, error)
	Acknowledge(occ health.Occurrence) error
	IsAcknowledged(occ health.Occurrence) (bool, error)
	PruneBefore(date string) (int, error)
}

// Dispatcher delivers a reminder to the user
type Dispatcher interface {
	Dispatch(ctx context.Context, r notify.Reminder) notify.Report
}

// StateSource provides the current application state
type StateSource interface {
	Snapshot() state.AppState
}

// Config holds scheduler settings
type Config struct {
	Snooze        time.Duration
	RetentionDays int
	Location      *time.Location
	Now           func() time.Time
}

// Scheduler arms a per-minute evaluation while reminders are enabled and
// medications exist, and tears it down otherwise.
type Scheduler struct {
	source     StateSource
	markers    MarkerStore
	dispatcher Dispatcher
	config     Config
	metrics    *metrics.Metrics
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	cron    *cron.Cron
	armed   bool
	gen     uint64
	snoozes map[string]*time.Timer

	evalMu     sync.Mutex
	sent       map[string]map[string]struct{} // date -> occurrence
	prunedDate string
}

// New creates a dormant scheduler
func New(source StateSource, markers MarkerStore, dispatcher Dispatcher, config Config, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	if config.Snooze <= 0 {
		config.Snooze = 5 * time.Minute
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 2
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:     source,
		markers:    markers,
		dispatcher: dispatcher,
		config:     config,
		metrics:    m,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		snoozes:    make(map[string]*time.Timer),
		sent:       make(map[string]map[string]struct{}),
	}
}

// Armed reports whether the minute timer is running
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Reconcile arms or disarms the minute timer from the current state. Call it
// whenever settings or the profile change.
func (s *Scheduler) Reconcile() {
	s.mu.Lock()
	// read under mu so concurrent reconciles apply in the order they observed state
	eligible := s.source.Snapshot().RemindersEligible()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	switch {
	case eligible && !s.armed:
		if err := s.armLocked(); err != nil {
			s.mu.Unlock()
			s.logger.Error("Failed to arm reminder scheduler", zap.Error(err))
			return
		}
		s.mu.Unlock()
		// activation evaluates at once so a reminder due now is not missed
		s.Evaluate(s.ctx, s.config.Now())
	case !eligible && s.armed:
		s.disarmLocked()
		s.mu.Unlock()
	default:
		s.mu.Unlock()
	}
}

func (s *Scheduler) armLocked() error {
	s.gen++
	gen := s.gen

	c := cron.New(cron.WithLocation(s.config.Location))
	if _, err := c.AddFunc(everyMinute, func() { s.tick(gen) }); err != nil {
		return fmt.Errorf("failed to schedule evaluation: %w", err)
	}
	c.Start()

	s.cron = c
	s.armed = true
	s.metrics.SetSchedulerArmed(true)
	s.logger.Info("Reminder scheduler armed")
	return nil
}

func (s *Scheduler) disarmLocked() {
	s.gen++
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	for key, t := range s.snoozes {
		t.Stop()
		delete(s.snoozes, key)
	}
	s.armed = false
	s.metrics.SetSchedulerArmed(false)
	s.logger.Info("Reminder scheduler disarmed")
}

// tick runs a scheduled evaluation unless the timer that fired it was torn down
func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	live := s.armed && s.gen == gen
	s.mu.Unlock()
	if !live {
		return
	}
	s.Evaluate(s.ctx, s.config.Now())
}

// Evaluate dispatches every active medication due at the minute containing
// now that has not been dispatched yet. It returns the number dispatched.
func (s *Scheduler) Evaluate(ctx context.Context, now time.Time) int {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in reminder evaluation", zap.Any("recover", r))
		}
	}()

	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	snap := s.source.Snapshot()
	if !snap.RemindersEligible() {
		return 0
	}

	now = now.In(s.config.Location).Truncate(time.Minute)
	s.pruneIfNewDay(now)

	clock := health.ClockString(now)
	dispatched := 0
	for _, med := range snap.Profile.Medications {
		if !med.FiresAt(clock) {
			continue
		}

		occ := health.OccurrenceAt(med, now)
		if s.alreadySent(occ) {
			s.metrics.RecordSkip()
			continue
		}

		// the marker precedes delivery so a restart within the minute stays quiet
		s.remember(occ)
		if err := s.markers.MarkDispatched(occ); err != nil {
			s.logger.Warn("Failed to persist reminder marker",
				zap.String("occurrence", occ.String()), zap.Error(err))
		}

		s.dispatcher.Dispatch(ctx, notify.Reminder{Medication: med, Occurrence: occ})
		s.metrics.RecordDispatch()
		dispatched++
	}
	return dispatched
}

func (s *Scheduler) alreadySent(occ health.Occurrence) bool {
	if _, ok := s.sent[occ.Date][occ.String()]; ok {
		return true
	}
	found, err := s.markers.IsDispatched(occ)
	if err != nil {
		s.logger.Warn("Failed to read reminder marker",
			zap.String("occurrence", occ.String()), zap.Error(err))
		return false
	}
	if found {
		s.remember(occ)
	}
	return found
}

func (s *Scheduler) remember(occ health.Occurrence) {
	day, ok := s.sent[occ.Date]
	if !ok {
		day = make(map[string]struct{})
		s.sent[occ.Date] = day
	}
	day[occ.String()] = struct{}{}
}

// pruneIfNewDay drops markers older than the retention window on the first
// evaluation of each day.
func (s *Scheduler) pruneIfNewDay(now time.Time) {
	today := health.DateString(now)
	if today == s.prunedDate {
		return
	}
	s.prunedDate = today

	cutoff := health.DateString(now.AddDate(0, 0, -(s.config.RetentionDays - 1)))
	for date := range s.sent {
		if date < cutoff {
			delete(s.sent, date)
		}
	}

	n, err := s.markers.PruneBefore(cutoff)
	if err != nil {
		s.logger.Warn("Failed to prune reminder markers", zap.String("before", cutoff), zap.Error(err))
		return
	}
	if n > 0 {
		s.metrics.RecordMarkersPruned(n)
		s.logger.Info("Pruned reminder markers", zap.Int("count", n), zap.String("before", cutoff))
	}
}

// Acknowledge records that the user took the dose and cancels any snooze
func (s *Scheduler) Acknowledge(occ health.Occurrence) error {
	s.mu.Lock()
	if t, ok := s.snoozes[occ.String()]; ok {
		t.Stop()
		delete(s.snoozes, occ.String())
	}
	s.mu.Unlock()

	if err := s.markers.Acknowledge(occ); err != nil {
		return err
	}
	s.metrics.RecordAck()
	return nil
}

// Snooze re-dispatches the reminder once after the snooze interval. A later
// snooze of the same occurrence replaces the pending one.
func (s *Scheduler) Snooze(r notify.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return fmt.Errorf("reminders are disabled")
	}

	key := r.Occurrence.String()
	if t, ok := s.snoozes[key]; ok {
		t.Stop()
	}
	gen := s.gen
	s.snoozes[key] = time.AfterFunc(s.config.Snooze, func() { s.fireSnooze(gen, r) })

	s.logger.Info("Reminder snoozed",
		zap.String("occurrence", key),
		zap.Duration("for", s.config.Snooze),
	)
	return nil
}

func (s *Scheduler) fireSnooze(gen uint64, r notify.Reminder) {
	key := r.Occurrence.String()

	s.mu.Lock()
	live := s.armed && s.gen == gen
	delete(s.snoozes, key)
	s.mu.Unlock()
	if !live {
		return
	}

	if !s.source.Snapshot().RemindersEligible() {
		return
	}
	if taken, err := s.markers.IsAcknowledged(r.Occurrence); err == nil && taken {
		return
	}

	s.dispatcher.Dispatch(s.ctx, r)
	s.metrics.RecordDispatch()
}

// PendingSnoozes returns the number of armed snooze timers
func (s *Scheduler) PendingSnoozes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snoozes)
}

// Stop tears down the timer and any pending snoozes
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.armed {
		s.disarmLocked()
	}
	s.cancel()
	s.mu.Unlock()
	s.logger.Info("Reminder scheduler stopped")
}
