package session

import (
	"io"
	"sync"

	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dapi"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/localapi"
	"github.com/wardenhq/warden/pkg/types"
	"github.com/wardenhq/warden/pkg/wire"
)

// fakeConn is a minimal wire.Connection that records sent frames and plays
// back a scripted sequence of inbound frames.
type fakeConn struct {
	mu    sync.Mutex
	inbox []wire.Frame
	sent  []wire.Frame
}

func (c *fakeConn) Send(f wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Recv() (wire.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) == 0 {
		return wire.Frame{}, io.EOF
	}
	f := c.inbox[0]
	c.inbox = c.inbox[1:]
	return f, nil
}

func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:0" }
func (c *fakeConn) Close() error       { return nil }

func (c *fakeConn) lastSent() wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return wire.Frame{}
	}
	return c.sent[len(c.sent)-1]
}

type fakeServer struct {
	mu sync.Mutex

	cfg       config.Config
	snapshot  types.Snapshot
	executed  map[string]bool
	workers   map[string]types.WorkerInfo
	correlator *dapi.Correlator
	localDispatch func(string, []byte) ([]byte, error)
	localAPI  *fakeLocalAPI
	agentDB   *fakeAgentDB
	unmerger  clustersync.Unmerger
	sendSync  []sendSyncEntry
	events    []events.Event
	statuses  map[string]clustersync.WorkerStatus
}

type sendSyncEntry struct {
	worker  string
	payload []byte
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		cfg:      config.Default(),
		snapshot: types.Snapshot{},
		executed: make(map[string]bool),
		workers:  make(map[string]types.WorkerInfo),
		statuses: make(map[string]clustersync.WorkerStatus),
		localAPI: newFakeLocalAPI(),
		agentDB:  &fakeAgentDB{responses: map[string]agentdb.ChunkResult{}},
		unmerger: func(mergeType, stagingDir, mergeName string) ([]types.MergedMember, error) {
			return nil, nil
		},
		correlator: dapi.NewCorrelator(fakeWorkerLookup{}, config.Default().Intervals.Communication.TimeoutDAPIRequest),
		localDispatch: func(command string, data []byte) ([]byte, error) {
			return []byte("local:" + command), nil
		},
	}
}

func (f *fakeServer) Config() config.Config { return f.cfg }
func (f *fakeServer) Snapshot() types.Snapshot { return f.snapshot }

func (f *fakeServer) MarkIntegrityExecuted(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executed[name] {
		return false
	}
	f.executed[name] = true
	return true
}

func (f *fakeServer) RegisterWorker(info types.WorkerInfo, link dapi.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers[info.Name] = info
}

func (f *fakeServer) UnregisterWorker(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workers, name)
}

func (f *fakeServer) Correlator() *dapi.Correlator           { return f.correlator }
func (f *fakeServer) LocalDispatch(command string, data []byte) ([]byte, error) {
	return f.localDispatch(command, data)
}
func (f *fakeServer) LocalAPI() localapi.Clients { return f.localAPI }
func (f *fakeServer) AgentDB() agentdb.Client     { return f.agentDB }
func (f *fakeServer) Unmerger() clustersync.Unmerger { return f.unmerger }

func (f *fakeServer) EnqueueSendSync(workerName string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendSync = append(f.sendSync, sendSyncEntry{worker: workerName, payload: payload})
}

func (f *fakeServer) UpdateWorkerStatus(name string, status clustersync.WorkerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[name] = status
}

func (f *fakeServer) PublishEvent(evt events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeServer) HealthView(filter []string) clustersync.HealthDocument {
	return clustersync.BuildHealthView(f.cfg.Cluster.NodeName, clustersync.NodeInfo{
		Name:     f.cfg.Cluster.NodeName,
		NodeType: f.cfg.Cluster.NodeType,
		Version:  f.cfg.Cluster.Version,
	}, f.workers, f.statuses, f.agentDB, filter)
}

type fakeLocalAPI struct {
	mu       sync.Mutex
	forwards map[string][]byte
	errors   map[string][]byte
	connected map[string]bool
}

func newFakeLocalAPI() *fakeLocalAPI {
	return &fakeLocalAPI{
		forwards:  make(map[string][]byte),
		errors:    make(map[string][]byte),
		connected: make(map[string]bool),
	}
}

func (l *fakeLocalAPI) Forward(clientName string, payload []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected[clientName] {
		return false
	}
	l.forwards[clientName] = payload
	return true
}

func (l *fakeLocalAPI) ForwardError(clientName string, payload []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected[clientName] {
		return false
	}
	l.errors[clientName] = payload
	return true
}

type fakeAgentDB struct {
	mu        sync.Mutex
	responses map[string]agentdb.ChunkResult
	sendErr   map[string]error
	exists    bool
}

func (f *fakeAgentDB) SendChunk(command, chunk string) (agentdb.ChunkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.sendErr[chunk]; ok {
		return agentdb.ChunkResult{}, err
	}
	return f.responses[chunk], nil
}

func (f *fakeAgentDB) ActiveAgentCount(nodeName string) (int, error) { return 0, nil }
func (f *fakeAgentDB) AgentExists(agentID string) bool               { return f.exists }

type fakeWorkerLookup struct{}

func (fakeWorkerLookup) Lookup(workerName string) (dapi.Link, bool) { return nil, false }
