package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker registry metrics
	WorkersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_workers_connected",
			Help: "Number of workers currently registered with the master",
		},
	)

	WorkerConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_worker_connections_total",
			Help: "Total number of worker connect/disconnect events by outcome",
		},
		[]string{"outcome"},
	)

	// Integrity check / sync metrics
	IntegrityCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_integrity_check_duration_seconds",
			Help:    "Time taken to diff a worker manifest against the master snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	IntegritySyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_integrity_sync_duration_seconds",
			Help:    "Time taken for an integrity sync round (push + extra-valid) by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	IntegrityDiffTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_integrity_diff_files_total",
			Help: "Total number of files classified by the integrity differ, by bucket",
		},
		[]string{"bucket"},
	)

	// Agent-info sync metrics
	AgentInfoSyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_agent_info_sync_duration_seconds",
			Help:    "Time taken for an agent-info database sync round by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	AgentInfoChunksSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_agent_info_chunks_synced_total",
			Help: "Total number of agent-info chunks applied to the database",
		},
	)

	AgentInfoChunkErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_agent_info_chunk_errors_total",
			Help: "Total number of agent-info chunks that failed to apply",
		},
	)

	// DAPI (distributed API) request metrics
	DAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_dapi_requests_total",
			Help: "Total number of DAPI requests dispatched, by destination and outcome",
		},
		[]string{"destination", "outcome"},
	)

	DAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_dapi_request_duration_seconds",
			Help:    "Round-trip latency of a DAPI request from dispatch to response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"destination"},
	)

	DAPIPendingRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_dapi_pending_requests",
			Help: "Number of DAPI requests currently awaiting a response",
		},
	)

	// Snapshot loop metrics
	SnapshotComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_snapshot_compute_duration_seconds",
			Help:    "Time taken to recompute the master file-tree snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_snapshot_cycles_total",
			Help: "Total number of completed snapshot recompute cycles",
		},
	)

	SnapshotFilesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_snapshot_files_total",
			Help: "Number of files tracked in the current master snapshot",
		},
	)

	// File apply metrics (process_files_from_worker)
	FilesAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_files_applied_total",
			Help: "Total number of files applied from a worker push, by outcome",
		},
		[]string{"outcome"},
	)

	FileApplyWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_file_apply_warnings_total",
			Help: "Total number of recoverable per-file warnings during apply",
		},
	)

	FileApplyErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_file_apply_errors_total",
			Help: "Total number of unrecoverable per-file errors during apply",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersConnected)
	prometheus.MustRegister(WorkerConnectionsTotal)

	prometheus.MustRegister(IntegrityCheckDuration)
	prometheus.MustRegister(IntegritySyncDuration)
	prometheus.MustRegister(IntegrityDiffTotal)

	prometheus.MustRegister(AgentInfoSyncDuration)
	prometheus.MustRegister(AgentInfoChunksSynced)
	prometheus.MustRegister(AgentInfoChunkErrors)

	prometheus.MustRegister(DAPIRequestsTotal)
	prometheus.MustRegister(DAPIRequestDuration)
	prometheus.MustRegister(DAPIPendingRequests)

	prometheus.MustRegister(SnapshotComputeDuration)
	prometheus.MustRegister(SnapshotCyclesTotal)
	prometheus.MustRegister(SnapshotFilesTotal)

	prometheus.MustRegister(FilesAppliedTotal)
	prometheus.MustRegister(FileApplyWarningsTotal)
	prometheus.MustRegister(FileApplyErrorsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
