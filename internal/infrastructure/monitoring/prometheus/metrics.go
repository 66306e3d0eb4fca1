package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the service records.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Diagnosis layer
	DiagnosesTotal          CounterVec
	DiagnosisDuration       HistogramVec
	DiagnosisCandidates     HistogramVec
	DiagnosisPartialTotal   CounterVec
	EncounterVariablesTotal HistogramVec

	// Library layer
	LibraryProfilesTotal  GaugeVec
	LibraryBuildsTotal    CounterVec
	LibraryBuildDuration  HistogramVec
	LibraryAnglesAssigned GaugeVec

	// Infrastructure layer
	DBPoolSize             GaugeVec
	DBPoolActive           GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultScoringDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	DefaultDBDurationBuckets      = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultCountBuckets           = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}
)

// NewAppMetrics registers all metrics on collector and returns them.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.DiagnosesTotal = collector.RegisterCounter("diagnoses_total", "Completed diagnostic runs", "status")
	m.DiagnosisDuration = collector.RegisterHistogram("diagnosis_duration_seconds", "End-to-end scoring duration", DefaultScoringDurationBuckets, "status")
	m.DiagnosisCandidates = collector.RegisterHistogram("diagnosis_candidates", "Candidate profiles scored per run", DefaultCountBuckets)
	m.DiagnosisPartialTotal = collector.RegisterCounter("diagnosis_partial_total", "Runs that hit the scoring deadline")
	m.EncounterVariablesTotal = collector.RegisterHistogram("encounter_variables", "Mapped variables per patient encounter", DefaultCountBuckets)

	m.LibraryProfilesTotal = collector.RegisterGauge("library_profiles_total", "Reference profiles in the library")
	m.LibraryBuildsTotal = collector.RegisterCounter("library_builds_total", "Profile build operations", "action", "status")
	m.LibraryBuildDuration = collector.RegisterHistogram("library_build_duration_seconds", "Profile build duration", DefaultScoringDurationBuckets)
	m.LibraryAnglesAssigned = collector.RegisterGauge("library_angles_assigned", "Angles minted by the allocator", "domain")

	m.DBPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBPoolActive = collector.RegisterGauge("db_pool_active", "Acquired database connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDiagnosis records one scoring run.
func RecordDiagnosis(m *AppMetrics, duration time.Duration, candidates int, partial bool, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.DiagnosesTotal.WithLabelValues(status).Inc()
	m.DiagnosisDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err == nil {
		m.DiagnosisCandidates.WithLabelValues().Observe(float64(candidates))
	}
	if partial {
		m.DiagnosisPartialTotal.WithLabelValues().Inc()
	}
}

// RecordLibraryBuild records one profile mutation.
func RecordLibraryBuild(m *AppMetrics, action string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.LibraryBuildsTotal.WithLabelValues(action, status).Inc()
	m.LibraryBuildDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordCacheAccess records one cache lookup.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordError records one error against a component.
func RecordError(m *AppMetrics, component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// SetHealthStatus records a component health probe result.
func SetHealthStatus(m *AppMetrics, component string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
