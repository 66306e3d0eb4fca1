package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/diagnovera/diagnovera/pkg/errors"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "POST", "/api/v1/diagnose", 200, 50*time.Millisecond)
	RecordHTTPRequest(m, "POST", "/api/v1/diagnose", 400, time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/diagnose",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/diagnose",status_code="400"} 1`)
	assert.Contains(t, out, `test_unit_http_request_duration_seconds_count{method="POST",path="/api/v1/diagnose"} 2`)
}

func TestRecordDiagnosis(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDiagnosis(m, 120*time.Millisecond, 500, false, nil)
	RecordDiagnosis(m, 2*time.Second, 300, true, nil)
	RecordDiagnosis(m, time.Millisecond, 0, false, errors.Internal("boom"))

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_diagnoses_total{status="success"} 2`)
	assert.Contains(t, out, `test_unit_diagnoses_total{status="failure"} 1`)
	assert.Contains(t, out, `test_unit_diagnosis_partial_total 1`)
	assert.Contains(t, out, `test_unit_diagnosis_candidates_count 2`)
}

func TestRecordLibraryBuild(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordLibraryBuild(m, "built", 30*time.Millisecond, nil)
	RecordLibraryBuild(m, "deleted", time.Millisecond, errors.NotFound("missing"))

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_library_builds_total{action="built",status="success"} 1`)
	assert.Contains(t, out, `test_unit_library_builds_total{action="deleted",status="failure"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "library", true)
	RecordCacheAccess(m, "library", true)
	RecordCacheAccess(m, "library", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_cache_hits_total{cache="library"} 2`)
	assert.Contains(t, out, `test_unit_cache_misses_total{cache="library"} 1`)
}

func TestSetHealthStatus(t *testing.T) {
	m, c := newTestAppMetrics(t)

	SetHealthStatus(m, "postgres", true)
	SetHealthStatus(m, "redis", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_health_check_status{component="postgres"} 1`)
	assert.Contains(t, out, `test_unit_health_check_status{component="redis"} 0`)
}

func TestRecordError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordError(m, "scoring", errors.CodeScoringFailed.String())
	RecordError(m, "scoring", errors.CodeScoringFailed.String())

	assert.Contains(t, scrapeMetrics(t, c),
		`test_unit_errors_total{code="DIAG_005",component="scoring"} 2`)
}
