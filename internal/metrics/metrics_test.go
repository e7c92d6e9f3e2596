package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Error("New() returned nil")
	}
}

func TestDefault(t *testing.T) {
	m1 := Default()
	m2 := Default()

	if m1 != m2 {
		t.Error("Default() should return same instance")
	}
}

func TestReminderCounters(t *testing.T) {
	m := New()
	m.RecordDispatch()
	m.RecordDispatch()
	m.RecordSkip()
	m.RecordAck()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.remindersDispatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remindersAcked))
}

func TestRecordChannel(t *testing.T) {
	m := New()
	m.RecordChannel("toast", true)
	m.RecordChannel("system", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.channelDeliveries.WithLabelValues("toast", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.channelDeliveries.WithLabelValues("system", "failed")))
}

func TestSchedulerArmedGauge(t *testing.T) {
	m := New()
	m.SetSchedulerArmed(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulerArmed))
	m.SetSchedulerArmed(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.schedulerArmed))
}

func TestSettingsAndBootstrap(t *testing.T) {
	m := New()
	m.RecordSettingsSave(true)
	m.RecordSettingsSave(false)
	m.RecordSettingsSkipped()
	m.RecordBootstrap("offline_first")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.settingsSaves.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settingsSaves.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.settingsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bootstrapRuns.WithLabelValues("offline_first")))
}

func TestRecordRemote(t *testing.T) {
	m := New()
	m.RecordRemote("get_profile", nil, 20*time.Millisecond)
	m.RecordRemote("get_profile", errors.New("boom"), time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequests.WithLabelValues("get_profile", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteRequests.WithLabelValues("get_profile", "error")))
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.RecordDispatch()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "skysense_reminders_dispatched_total 1")
}
