package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/skysense/internal/config"
	apperrors "github.com/gmsas95/skysense/internal/errors"
	"github.com/gmsas95/skysense/internal/health"
	"github.com/gmsas95/skysense/internal/metrics"
)

// fakeServer serves a Memory service over the client's HTTP contract
func fakeServer(t *testing.T, mem *Memory) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /profile/{id}", func(w http.ResponseWriter, r *http.Request) {
		p, _ := mem.GetProfile(r.Context(), r.PathValue("id"))
		json.NewEncoder(w).Encode(profileEnvelope{Profile: p})
	})
	mux.HandleFunc("POST /profile", func(w http.ResponseWriter, r *http.Request) {
		var p health.UserProfile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, _ := mem.SaveProfile(r.Context(), p)
		json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("GET /settings/{id}", func(w http.ResponseWriter, r *http.Request) {
		s, _ := mem.GetUserSettings(r.Context(), r.PathValue("id"))
		json.NewEncoder(w).Encode(settingsEnvelope{Settings: s})
	})
	mux.HandleFunc("POST /settings/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req saveSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mem.SaveSettings(r.Context(), r.PathValue("id"), req.Settings)
		w.Write([]byte(`{"success":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.RemoteConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, zap.NewNop(), metrics.New())
}

func TestClient_ProfileRoundTrip(t *testing.T) {
	mem := NewMemory()
	srv := fakeServer(t, mem)
	client := newTestClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.HealthCheck(ctx))

	profile := health.UserProfile{
		HasAsthma: true,
		AgeGroup:  "25-34",
		Medications: []health.Medication{
			{ID: "m1", Name: "Inhaler", Dosage: "2 puffs", Times: []string{"08:00", "20:00"}, IsActive: true},
		},
	}

	res, err := client.SaveProfile(ctx, profile)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.ID())

	loaded, err := client.GetProfile(ctx, res.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, profile, *loaded)
}

func TestClient_MissingProfileIsNil(t *testing.T) {
	srv := fakeServer(t, NewMemory())
	client := newTestClient(srv.URL)

	p, err := client.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)

	s, err := client.GetUserSettings(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestClient_SettingsRoundTrip(t *testing.T) {
	mem := NewMemory()
	srv := fakeServer(t, mem)
	client := newTestClient(srv.URL)
	ctx := context.Background()

	settings := health.DefaultSettings()
	settings.CommunityUpdates = true

	require.NoError(t, client.SaveSettings(ctx, "p1", settings))

	patch, err := client.GetUserSettings(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, patch)
	assert.Equal(t, settings, health.AppSettings{}.Apply(*patch))

	saves := mem.SettingsSaves()
	require.Len(t, saves, 1)
	assert.Equal(t, "p1", saves[0].ProfileID)
}

func TestClient_SendsBearerKey(t *testing.T) {
	var mu sync.Mutex
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).HealthCheck(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer test-key", got)
}

func TestClient_Non2xxIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SaveSettings(context.Background(), "p1", health.DefaultSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRemoteRequest)
	assert.True(t, strings.Contains(err.Error(), "500"))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	assert.Error(t, client.HealthCheck(ctx))
	assert.Error(t, client.HealthCheck(ctx))

	err := client.HealthCheck(ctx)
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestClient_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestClient(url).HealthCheck(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRemoteUnavailable)
}

func TestOffline(t *testing.T) {
	var svc ProfileService = Offline{}
	ctx := context.Background()

	assert.ErrorIs(t, svc.HealthCheck(ctx), apperrors.ErrRemoteUnavailable)
	_, err := svc.SaveProfile(ctx, health.DefaultProfile())
	assert.ErrorIs(t, err, apperrors.ErrRemoteUnavailable)
}

func TestMemory_HangHealthCheck(t *testing.T) {
	mem := NewMemory()
	mem.SetFaults(Faults{HangHealthCheck: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, mem.HealthCheck(ctx), context.DeadlineExceeded)
}

func TestSaveProfileResult_ID(t *testing.T) {
	assert.Equal(t, "p", SaveProfileResult{ProfileID: "p", UserID: "u"}.ID())
	assert.Equal(t, "u", SaveProfileResult{UserID: "u"}.ID())
	assert.Empty(t, SaveProfileResult{}.ID())
}
