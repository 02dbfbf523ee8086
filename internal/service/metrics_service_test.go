package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsServiceGeneration(t *testing.T) {
	m := NewMetricsService()

	m.ObserveGeneration("success", 20*time.Millisecond, 7, 2)
	m.ObserveGeneration("rejected", 0, 0, 0)

	body := scrape(t, m)
	assert.Contains(t, body, `timetable_generations_total{outcome="success"} 1`)
	assert.Contains(t, body, `timetable_generations_total{outcome="rejected"} 1`)
	assert.Contains(t, body, "timetable_scheduled_entries 7")
	assert.Contains(t, body, "timetable_unscheduled_subjects_total 2")
	assert.Contains(t, body, "timetable_generation_duration_seconds_count 1")
}

func TestMetricsServiceCacheAndHTTP(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/timetable", http.StatusOK, time.Millisecond)
	m.RecordNotificationFailure()

	body := scrape(t, m)
	assert.Contains(t, body, "cache_hit_ratio 0.5")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/timetable",status="200"} 1`)
	assert.Contains(t, body, "notification_delivery_failures_total 1")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration("success", time.Second, 1, 1)
	m.RecordCacheOperation(true, time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
