package master

import (
	"context"
	"time"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
)

// snapshotLoop is SnapshotLoop (§4.7): a long-running task that recomputes
// the master's file-tree metadata on a single-worker pool, publishes it
// atomically, and clears integrity-already-executed. Grounded on the
// teacher's scheduler.Scheduler ticker-loop shape (NewScheduler/Start/Stop/
// run), generalized from a 5-second fixed period to the configured
// recalculate_integrity interval and from "schedule containers" to
// "recompute the snapshot".
type snapshotLoop struct {
	server *Server
	stopCh chan struct{}

	// work is a single-worker pool: snapshot computation is serialized by
	// construction (one goroutine ever runs computeOnce at a time), matching
	// §4.7's "the worker pool holds exactly one worker".
	work chan func()
}

func newSnapshotLoop(s *Server) *snapshotLoop {
	return &snapshotLoop{
		server: s,
		stopCh: make(chan struct{}),
		work:   make(chan func(), 1),
	}
}

// Start launches the single-worker pool goroutine and the ticking driver.
// snapshot_loop is registered unhealthy until the first cycle completes, so
// /ready (backed by metrics.GetReadiness) reports not-ready until the
// master actually has a snapshot to serve.
func (l *snapshotLoop) Start() {
	metrics.RegisterComponent("snapshot_loop", false, "no cycle completed yet")
	go l.runWorker()
	go l.run()
}

func (l *snapshotLoop) Stop() {
	close(l.stopCh)
}

func (l *snapshotLoop) run() {
	interval := l.server.cfg.Intervals.Master.RecalculateIntegrity
	if interval <= 0 {
		interval = 60 * time.Second
	}

	l.submit()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.submit()
		case <-l.stopCh:
			return
		}
	}
}

// submit hands one recompute cycle to the worker pool without blocking the
// ticking driver if a previous cycle is still running.
func (l *snapshotLoop) submit() {
	select {
	case l.work <- l.computeOnce:
	default:
		log.Warn("snapshot recompute skipped: previous cycle still running")
	}
}

func (l *snapshotLoop) runWorker() {
	for {
		select {
		case fn := <-l.work:
			fn()
		case <-l.stopCh:
			return
		}
	}
}

// computeOnce runs one recompute cycle: walk the configured cluster-item
// keys, build the new snapshot, swap it in atomically, and clear
// integrity-already-executed (§4.7). Any exception is logged and the loop
// continues, matching "Any exception is logged and the loop continues."
func (l *snapshotLoop) computeOnce() {
	s := l.server
	timer := metrics.NewTimer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	snapshot, err := clustersync.ComputeSnapshot(ctx, s.cfg.Staging.BaseDir, s.cfg.Files, s.merger)
	if err != nil {
		log.Errorf("snapshot recompute failed", err)
		metrics.UpdateComponent("snapshot_loop", false, err.Error())
		return
	}
	metrics.UpdateComponent("snapshot_loop", true, "last cycle ok")

	s.snapshot.Store(&snapshot)

	s.mu.Lock()
	s.executed = make(map[string]bool)
	s.mu.Unlock()

	timer.ObserveDuration(metrics.SnapshotComputeDuration)
	metrics.SnapshotCyclesTotal.Inc()
	metrics.SnapshotFilesTotal.Set(float64(len(snapshot)))

	s.PublishEvent(events.Event{
		Type:    events.EventSnapshotRecomputed,
		Message: "snapshot recompute cycle complete",
	})
}

// staleWorkerLoop checks every registered worker's keepalive status every
// 30 seconds and publishes EventWorkerStale for each one that has missed
// too many checks. It does not evict the worker: the registry entry is
// removed only by the connection's own teardown (UnregisterWorker).
// Grounded on the same ticker shape as snapshotLoop.
type staleWorkerLoop struct {
	server *Server
	stopCh chan struct{}
}

func newStaleWorkerLoop(s *Server) *staleWorkerLoop {
	return &staleWorkerLoop{server: s, stopCh: make(chan struct{})}
}

func (l *staleWorkerLoop) Start() { go l.run() }
func (l *staleWorkerLoop) Stop()  { close(l.stopCh) }

func (l *staleWorkerLoop) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.checkOnce()
		case <-l.stopCh:
			return
		}
	}
}

func (l *staleWorkerLoop) checkOnce() {
	s := l.server
	now := time.Now()
	cfg := s.keepaliveConfig()

	var stale []string
	s.mu.Lock()
	for name, info := range s.workers {
		st, ok := s.keepalive[name]
		if !ok {
			continue
		}
		if info.LastKeepAlive.IsZero() {
			continue // never checked in yet; give it its first round
		}
		result := st.Check(info.LastKeepAlive, now, cfg)
		if !result.Healthy && !st.Healthy {
			stale = append(stale, name)
		}
	}
	s.mu.Unlock()

	for _, name := range stale {
		s.PublishEvent(events.Event{
			Type:     events.EventWorkerStale,
			Message:  "worker missed keepalive checks",
			Metadata: map[string]string{"worker": name},
		})
	}
}
