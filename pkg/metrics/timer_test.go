package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if timer.start.IsZero() {
		t.Error("NewTimer() start time is zero")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()
	if duration < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", duration, sleepDuration)
	}
}

// TestTimerObserveDurationSnapshotCompute exercises the Timer against the
// production histogram the snapshot loop reports against
// (pkg/master/snapshotloop.go's computeOnce).
func TestTimerObserveDurationSnapshotCompute(t *testing.T) {
	before := sampleCount(t, SnapshotComputeDuration)

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(SnapshotComputeDuration)

	after := sampleCount(t, SnapshotComputeDuration)
	if after != before+1 {
		t.Errorf("SnapshotComputeDuration sample count = %d, want %d", after, before+1)
	}
}

// TestTimerObserveDurationVecIntegritySync exercises the Timer against the
// production histogram vec an integrity sync round reports against
// (pkg/session/integrity.go), by outcome label.
func TestTimerObserveDurationVecIntegritySync(t *testing.T) {
	before := vecSampleCount(t, IntegritySyncDuration, "ok")

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(IntegritySyncDuration, "ok")

	after := vecSampleCount(t, IntegritySyncDuration, "ok")
	if after != before+1 {
		t.Errorf(`IntegritySyncDuration{outcome="ok"} sample count = %d, want %d`, after, before+1)
	}
}

// TestTimerConsistency tests that Duration returns monotonically
// increasing values.
func TestTimerConsistency(t *testing.T) {
	timer := NewTimer()

	var lastDuration time.Duration
	for i := 0; i < 3; i++ {
		time.Sleep(5 * time.Millisecond)
		duration := timer.Duration()

		if duration <= lastDuration {
			t.Errorf("Duration should be monotonically increasing: iteration %d, last=%v, current=%v", i, lastDuration, duration)
		}
		lastDuration = duration
	}
}

func sampleCount(t *testing.T, histogram prometheus.Histogram) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := histogram.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func vecSampleCount(t *testing.T, vec *prometheus.HistogramVec, label string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := vec.WithLabelValues(label).(prometheus.Histogram).Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
