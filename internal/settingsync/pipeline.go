// Package settingsync pushes settings changes to the remote profile service,
// coalescing bursts of changes into one save.
package settingsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
	"github.com/gmsas95/skysense/internal/store"
)

// Saver stores a full settings snapshot remotely
type Saver interface {
	SaveSettings(ctx context.Context, profileID string, settings health.AppSettings) error
}

// Pipeline debounces settings changes. Each change restarts the timer and
// replaces the pending snapshot; when the timer fires the latest snapshot is
// saved once. Failed saves are dropped.
type Pipeline struct {
	remote   Saver
	kv       store.KV
	debounce time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending health.AppSettings
	wg      sync.WaitGroup
}

// New creates a pipeline reading the profile id from kv
func New(remote Saver, kv store.KV, debounce time.Duration, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if debounce <= 0 {
		debounce = time.Second
	}
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		remote:   remote,
		kv:       kv,
		debounce: debounce,
		metrics:  m,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Notify records a settings change and restarts the debounce timer
func (p *Pipeline) Notify(settings health.AppSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.pending = settings
	p.timer = time.AfterFunc(p.debounce, func() { p.fire(gen) })
}

// Pending reports whether a save is waiting on the debounce timer
func (p *Pipeline) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.timer == nil {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	settings := p.pending
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	p.save(settings)
}

func (p *Pipeline) save(settings health.AppSettings) {
	profileID, err := p.profileID()
	if errors.Is(err, apperrors.ErrNoProfileID) {
		p.metrics.RecordSettingsSkipped()
		p.logger.Debug("Settings sync skipped", zap.Error(err))
		return
	}
	if err != nil {
		p.logger.Warn("Failed to read profile id for settings sync", zap.Error(err))
		return
	}

	if err := p.remote.SaveSettings(p.ctx, profileID, settings); err != nil {
		p.metrics.RecordSettingsSave(false)
		p.logger.Warn("Failed to auto-save settings", zap.String("profile_id", profileID), zap.Error(err))
		return
	}
	p.metrics.RecordSettingsSave(true)
	p.logger.Debug("Settings auto-saved", zap.String("profile_id", profileID))
}

// profileID returns the persisted profile id, or ErrNoProfileID before the
// first remote profile exists
func (p *Pipeline) profileID() (string, error) {
	id, ok, err := p.kv.Get(store.KeyProfileID)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", apperrors.ErrNoProfileID
	}
	return id, nil
}

// Stop cancels any pending save and waits for an in-flight one
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.gen++
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
