// Package remote talks to the remote profile service. The service itself is an
// external collaborator; this package only consumes it.
package remote

import (
	"context"

	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
)

// SaveProfileResult is the remote's answer to a profile save
type SaveProfileResult struct {
	Success   bool   `json:"success"`
	ProfileID string `json:"profileId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

// ID returns the server-assigned identifier, preferring the profile id
func (r SaveProfileResult) ID() string {
	if r.ProfileID != "" {
		return r.ProfileID
	}
	return r.UserID
}

// ProfileService is the remote profile store. Getters return nil without an
// error when the remote has nothing stored.
type ProfileService interface {
	HealthCheck(ctx context.Context) error
	GetProfile(ctx context.Context, profileID string) (*health.UserProfile, error)
	SaveProfile(ctx context.Context, profile health.UserProfile) (*SaveProfileResult, error)
	GetUserSettings(ctx context.Context, profileID string) (*health.SettingsPatch, error)
	SaveSettings(ctx context.Context, profileID string, settings health.AppSettings) error
}

// Offline is the ProfileService used when no remote is configured
type Offline struct{}

func (Offline) HealthCheck(context.Context) error {
	return apperrors.ErrRemoteUnavailable
}

func (Offline) GetProfile(context.Context, string) (*health.UserProfile, error) {
	return nil, apperrors.ErrRemoteUnavailable
}

func (Offline) SaveProfile(context.Context, health.UserProfile) (*SaveProfileResult, error) {
	return nil, apperrors.ErrRemoteUnavailable
}

func (Offline) GetUserSettings(context.Context, string) (*health.SettingsPatch, error) {
	return nil, apperrors.ErrRemoteUnavailable
}

func (Offline) SaveSettings(context.Context, string, health.AppSettings) error {
	return apperrors.ErrRemoteUnavailable
}
