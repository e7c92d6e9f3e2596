package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gmsas95/skysense/internal/config"
	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
)

// Client is the HTTP implementation of ProfileService
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClient creates a new remote profile service client
func NewClient(cfg config.RemoteConfig, logger *zap.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		metrics: m,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "remote-profile-service",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Remote circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

type profileEnvelope struct {
	Profile *health.UserProfile `json:"profile"`
}

type settingsEnvelope struct {
	Settings *health.SettingsPatch `json:"settings"`
}

type saveSettingsRequest struct {
	Settings health.AppSettings `json:"settings"`
}

// HealthCheck probes the remote's liveness endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, "health_check", http.MethodGet, "/health", nil)
	return err
}

// GetProfile fetches the profile stored under profileID
func (c *Client) GetProfile(ctx context.Context, profileID string) (*health.UserProfile, error) {
	body, err := c.do(ctx, "get_profile", http.MethodGet, "/profile/"+url.PathEscape(profileID), nil)
	if err != nil {
		return nil, err
	}

	var env profileEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return env.Profile, nil
}

// SaveProfile stores the profile and returns the server-assigned identifier
func (c *Client) SaveProfile(ctx context.Context, profile health.UserProfile) (*SaveProfileResult, error) {
	body, err := c.do(ctx, "save_profile", http.MethodPost, "/profile", profile)
	if err != nil {
		return nil, err
	}

	var res SaveProfileResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode save response: %w", err)
	}
	return &res, nil
}

// GetUserSettings fetches the settings stored under profileID
func (c *Client) GetUserSettings(ctx context.Context, profileID string) (*health.SettingsPatch, error) {
	body, err := c.do(ctx, "get_settings", http.MethodGet, "/settings/"+url.PathEscape(profileID), nil)
	if err != nil {
		return nil, err
	}

	var env settingsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return env.Settings, nil
}

// SaveSettings stores the full settings snapshot. It is not retried.
func (c *Client) SaveSettings(ctx context.Context, profileID string, settings health.AppSettings) error {
	_, err := c.do(ctx, "save_settings", http.MethodPost, "/settings/"+url.PathEscape(profileID), saveSettingsRequest{Settings: settings})
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	start := time.Now()
	body, err := c.execute(ctx, method, path, payload)
	if c.metrics != nil {
		c.metrics.RecordRemote(op, err, time.Since(start))
	}
	if err != nil {
		c.logger.Debug("Remote request failed", zap.String("op", op), zap.Error(err))
	}
	return body, err
}

func (c *Client) execute(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrRemoteUnavailable, err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.WrapAs(apperrors.ErrCircuitOpen, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrRemoteUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.WrapAs(apperrors.ErrRemoteRequest,
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(body)))
	}
	return body, nil
}
