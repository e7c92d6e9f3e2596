package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gmsas95/skysense/internal/health"
)

// Faults injects failures into a Memory service
type Faults struct {
	HealthCheck  error
	GetProfile   error
	SaveProfile  error
	GetSettings  error
	SaveSettings error

	// HangHealthCheck blocks HealthCheck until its context is done
	HangHealthCheck bool
}

// SettingsSave records one SaveSettings call
type SettingsSave struct {
	ProfileID string
	Settings  health.AppSettings
}

// Memory is an in-process ProfileService. It backs the local dev server and tests.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]health.UserProfile
	settings map[string]health.SettingsPatch
	saves    []SettingsSave
	faults   Faults
}

// NewMemory creates an empty in-memory profile service
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]health.UserProfile),
		settings: make(map[string]health.SettingsPatch),
	}
}

// SetFaults replaces the injected failures
func (m *Memory) SetFaults(f Faults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = f
}

// PutProfile seeds a stored profile
func (m *Memory) PutProfile(id string, p health.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[id] = p.Clone()
}

// PutSettings seeds stored settings, possibly partial
func (m *Memory) PutSettings(id string, p health.SettingsPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[id] = p
}

// SettingsSaves returns every SaveSettings call in order
func (m *Memory) SettingsSaves() []SettingsSave {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SettingsSave, len(m.saves))
	copy(out, m.saves)
	return out
}

func (m *Memory) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	f := m.faults
	m.mu.Unlock()

	if f.HangHealthCheck {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.HealthCheck
}

func (m *Memory) GetProfile(_ context.Context, profileID string) (*health.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults.GetProfile != nil {
		return nil, m.faults.GetProfile
	}
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (m *Memory) SaveProfile(_ context.Context, profile health.UserProfile) (*SaveProfileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults.SaveProfile != nil {
		return nil, m.faults.SaveProfile
	}
	id := uuid.New().String()
	m.profiles[id] = profile.Clone()
	return &SaveProfileResult{Success: true, ProfileID: id}, nil
}

func (m *Memory) GetUserSettings(_ context.Context, profileID string) (*health.SettingsPatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults.GetSettings != nil {
		return nil, m.faults.GetSettings
	}
	p, ok := m.settings[profileID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) SaveSettings(_ context.Context, profileID string, settings health.AppSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, SettingsSave{ProfileID: profileID, Settings: settings})
	if m.faults.SaveSettings != nil {
		return m.faults.SaveSettings
	}
	m.settings[profileID] = settings.Patch()
	return nil
}
