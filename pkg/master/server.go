// Package master implements MasterServer (§2 #7): the multi-client server
// that owns the published snapshot, the pending-request table, the
// per-cycle "already-checked" set, the worker registry, and the DAPI/
// SendSync request queues, and aggregates the cluster-wide health view.
//
// It satisfies three consumer-defined interfaces from three different
// packages — session.ServerContext, metrics.MasterView, api.HealthProvider —
// the same "accept interfaces" shape the teacher's manager/scheduler split
// uses (pkg/scheduler.Scheduler holds only a *manager.Manager, never the
// reverse).
package master

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dapi"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/health"
	"github.com/wardenhq/warden/pkg/localapi"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
)

// Deps are the external collaborators MasterServer is constructed with: the
// agent-info database, the local-API client registry, the merge/unmerge
// file-format pair, and the synchronous local command dispatcher. Every one
// of these is stated as a contract by its own package (§1 "external
// collaborator"); pkg/master holds no implementation of them, and the
// binary entrypoint (cmd/wardend) supplies its in-process stand-ins
// (stubs.go, and main.go's localDispatch) at startup.
type Deps struct {
	Config        config.Config
	AgentDB       agentdb.Client
	LocalAPI      localapi.Clients
	Unmerger      clustersync.Unmerger
	Merger        clustersync.Merger
	LocalDispatch dapi.LocalDispatch
}

// Server is the concrete MasterServer.
type Server struct {
	cfg config.Config

	snapshot atomic.Pointer[types.Snapshot]

	mu          sync.RWMutex
	executed    map[string]bool
	workers     map[string]types.WorkerInfo
	links       map[string]dapi.Link
	statuses    map[string]clustersync.WorkerStatus
	keepalive   map[string]*health.Status
	sendSyncQ   []SendSyncRequest

	agentDB       agentdb.Client
	localAPI      localapi.Clients
	unmerger      clustersync.Unmerger
	merger        clustersync.Merger
	localDispatch dapi.LocalDispatch

	correlator *dapi.Correlator
	broker     *events.Broker

	snapshotLoop *snapshotLoop
	staleLoop    *staleWorkerLoop

	startedAt time.Time
	ready     atomic.Bool
}

// SendSyncRequest is one entry of the server-wide SendSync queue (§4.1
// `sendsync`).
type SendSyncRequest struct {
	Worker  string
	Payload []byte
}

// New builds a MasterServer. The snapshot starts empty; call Start to begin
// the SnapshotLoop and stale-worker loop, which populate it on their first
// tick.
func New(deps Deps) *Server {
	s := &Server{
		cfg:       deps.Config,
		executed:  make(map[string]bool),
		workers:   make(map[string]types.WorkerInfo),
		links:     make(map[string]dapi.Link),
		statuses:  make(map[string]clustersync.WorkerStatus),
		keepalive: make(map[string]*health.Status),

		agentDB:       deps.AgentDB,
		localAPI:      deps.LocalAPI,
		unmerger:      deps.Unmerger,
		merger:        deps.Merger,
		localDispatch: deps.LocalDispatch,

		broker: events.NewBroker(),
	}

	s.snapshot.Store(&types.Snapshot{})
	s.correlator = dapi.NewCorrelator(workerLookup{s}, deps.Config.Intervals.Communication.TimeoutDAPIRequest)
	s.snapshotLoop = newSnapshotLoop(s)
	s.staleLoop = newStaleWorkerLoop(s)
	return s
}

// Start begins the background loops and marks the server ready.
func (s *Server) Start() {
	s.startedAt = time.Now()
	s.broker.Start()
	s.snapshotLoop.Start()
	s.staleLoop.Start()
	s.ready.Store(true)
}

// Stop tears down the background loops.
func (s *Server) Stop() {
	s.ready.Store(false)
	s.snapshotLoop.Stop()
	s.staleLoop.Stop()
	s.broker.Stop()
}

// --- session.ServerContext ---

func (s *Server) Config() config.Config { return s.cfg }

func (s *Server) Snapshot() types.Snapshot {
	return *s.snapshot.Load()
}

// MarkIntegrityExecuted implements the "at most one integrity-check
// permission granted per worker per snapshot cycle" rule (§3, §8 scenario
// 3). It also counts as a liveness signal: a probe frame only arrives over
// an open connection.
func (s *Server) MarkIntegrityExecuted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touchKeepAliveLocked(name)
	if s.executed[name] {
		return false
	}
	s.executed[name] = true
	return true
}

func (s *Server) RegisterWorker(info types.WorkerInfo, link dapi.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workers[info.Name] = info
	s.links[info.Name] = link
	s.keepalive[info.Name] = health.NewStatus()
}

func (s *Server) UnregisterWorker(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.workers, name)
	delete(s.links, name)
	delete(s.statuses, name)
	delete(s.keepalive, name)
}

func (s *Server) UpdateWorkerStatus(name string, status clustersync.WorkerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[name] = status
	s.touchKeepAliveLocked(name)
}

func (s *Server) Correlator() *dapi.Correlator { return s.correlator }

func (s *Server) LocalDispatch(command string, data []byte) ([]byte, error) {
	return s.localDispatch(command, data)
}

func (s *Server) LocalAPI() localapi.Clients { return s.localAPI }

func (s *Server) AgentDB() agentdb.Client { return s.agentDB }

func (s *Server) Unmerger() clustersync.Unmerger { return s.unmerger }

func (s *Server) EnqueueSendSync(workerName string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendSyncQ = append(s.sendSyncQ, SendSyncRequest{Worker: workerName, Payload: payload})
}

// DrainSendSync removes and returns every queued SendSync request. A
// separate worker-facing dispatch loop (outside this package's scope, §1)
// is expected to pop from this queue and deliver each request to its named
// worker's link.
func (s *Server) DrainSendSync() []SendSyncRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.sendSyncQ
	s.sendSyncQ = nil
	return drained
}

func (s *Server) HealthView(filter []string) clustersync.HealthDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make(map[string]types.WorkerInfo, len(s.workers))
	for k, v := range s.workers {
		workers[k] = v
	}
	statuses := make(map[string]clustersync.WorkerStatus, len(s.statuses))
	for k, v := range s.statuses {
		statuses[k] = v
	}

	return clustersync.BuildHealthView(s.cfg.Cluster.NodeName, clustersync.NodeInfo{
		Name:     s.cfg.Cluster.NodeName,
		NodeType: s.cfg.Cluster.NodeType,
		Version:  s.cfg.Cluster.Version,
	}, workers, statuses, s.agentDB, filter)
}

// PublishEvent assigns an id and timestamp and hands the event to the
// server-wide broker. It never blocks on a slow subscriber: Broker.Publish
// only blocks until its own internal channel accepts the event.
func (s *Server) PublishEvent(evt events.Event) {
	evt.ID = uuid.NewString()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	s.broker.Publish(&evt)
}

// Subscribe exposes the event broker to operators (e.g. an SSE/webhook
// bridge in cmd/wardend); not part of session.ServerContext.
func (s *Server) Subscribe() events.Subscriber { return s.broker.Subscribe() }
func (s *Server) Unsubscribe(sub events.Subscriber) { s.broker.Unsubscribe(sub) }

// --- metrics.MasterView ---

func (s *Server) WorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

func (s *Server) SnapshotFileCount() int {
	return len(s.Snapshot())
}

func (s *Server) PendingDAPIRequestCount() int {
	return s.correlator.PendingCount()
}

// --- api.HealthProvider ---

func (s *Server) HealthDocument() interface{} {
	return s.HealthView(nil)
}

func (s *Server) Ready() (bool, string) {
	if !s.ready.Load() {
		return false, "snapshot loop not yet started"
	}
	readiness := metrics.GetReadiness()
	if readiness.Status != "ready" {
		return false, readiness.Message
	}
	return true, ""
}

// touchKeepAliveLocked records liveness for name. Callers must hold s.mu.
// The protocol has no dedicated keepalive command (§9 open question (b) is
// silent on this too); any frame that reaches a ServerContext method from an
// active worker is treated as proof of life, approximating what a real
// heartbeat frame would provide.
func (s *Server) touchKeepAliveLocked(name string) {
	now := time.Now()
	if info, ok := s.workers[name]; ok {
		info.LastKeepAlive = now
		s.workers[name] = info
	}
	if st, ok := s.keepalive[name]; ok {
		st.Update(health.Result{Healthy: true, CheckedAt: now}, s.keepaliveConfig())
	}
}

func (s *Server) keepaliveConfig() health.Config {
	cfg := health.DefaultConfig()
	if s.cfg.Intervals.Communication.TimeoutReceivingFile > 0 {
		cfg.Timeout = s.cfg.Intervals.Communication.TimeoutReceivingFile
	}
	return cfg
}

// workerLookup adapts Server to dapi.WorkerLookup.
type workerLookup struct{ s *Server }

func (w workerLookup) Lookup(workerName string) (dapi.Link, bool) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	link, ok := w.s.links[workerName]
	return link, ok
}
