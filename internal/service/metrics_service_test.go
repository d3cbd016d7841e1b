package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/models"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceConversionCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordStaged()
	m.RecordConversion(models.ConversionModeClient, true)
	m.RecordConversion(models.ConversionModeClient, false)
	m.RecordConversion(models.ConversionModeAtomic, true)
	m.RecordSubmission("invalid")

	body := scrape(t, m)
	assert.Contains(t, body, "conversions_staged_total 1")
	assert.Contains(t, body, `conversions_completed_total{mode="client"} 2`)
	assert.Contains(t, body, `conversions_completed_total{mode="atomic"} 1`)
	assert.Contains(t, body, "conversion_reconcile_failures_total 1")
	assert.Contains(t, body, `admission_submissions_total{result="invalid"} 1`)
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "cache_hit_ratio 0.75")
	assert.Contains(t, body, "cache_hits_total 3")
}

func TestMetricsServiceExposesUpstream(t *testing.T) {
	m := NewMetricsService()
	m.ObserveUpstream(http.MethodGet, "/enquiries/:id", http.StatusOK, 20*time.Millisecond)
	m.ObserveUpstream(http.MethodPost, "/admissions", 0, time.Second)

	body := scrape(t, m)
	assert.Contains(t, body, `ims_upstream_requests_total{endpoint="/enquiries/:id",method="GET",status="200"} 1`)
	assert.Contains(t, body, `ims_upstream_requests_total{endpoint="/admissions",method="POST",status="0"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordStaged()
	m.RecordSubmission("created")
	m.ObserveUpstream(http.MethodGet, "/setup", 0, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
