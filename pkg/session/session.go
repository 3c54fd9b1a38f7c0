package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
	"github.com/wardenhq/warden/pkg/wire"
)

// WorkerSession is the per-connection handler described in §2 #6: it owns
// its SyncSlot, ReceiveTask map, sync-status records, and task-scoped
// loggers, and routes inbound frames to the handlers registered in
// dispatch.go.
type WorkerSession struct {
	conn   wire.Connection
	link   *connLink
	server ServerContext

	dispatcher *wire.Dispatcher

	name        string
	clusterName string
	nodeType    string
	version     string
	stagingDir  string

	slot *clustersync.SyncSlot

	tasksMu sync.Mutex
	tasks   map[string]*clustersync.ReceiveTask
	cancels map[string]context.CancelFunc

	strings *stringRegistry

	statusMu sync.Mutex
	status   clustersync.WorkerStatus

	taskSeq atomic.Uint64

	integrityLog     zerolog.Logger
	integritySyncLog zerolog.Logger
	agentInfoLog     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// connLink adapts a pkg/wire.Connection to the narrower pkg/dapi.Link
// contract, used as the "own link" argument for the plain `dapi` command
// (§4.5).
type connLink struct{ conn wire.Connection }

func (l *connLink) Send(command string, data []byte) error {
	return l.conn.Send(wire.Frame{Command: command, Data: data})
}

// New creates a WorkerSession bound to an accepted connection. The hello
// exchange (§4.9) has not happened yet; Run performs it before entering the
// dispatch loop.
func New(conn wire.Connection, server ServerContext) *WorkerSession {
	ctx, cancel := context.WithCancel(context.Background())

	s := &WorkerSession{
		conn:    conn,
		link:    &connLink{conn: conn},
		server:  server,
		slot:    clustersync.NewSyncSlot(),
		tasks:   make(map[string]*clustersync.ReceiveTask),
		cancels: make(map[string]context.CancelFunc),
		strings: newStringRegistry(),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.dispatcher = wire.NewDispatcher()
	s.registerHandlers()
	return s
}

// Run performs the hello exchange and then loops reading frames off the
// connection until it closes or errors, dispatching each to its handler in
// turn (§5: "the dispatcher is non-reentrant per connection... command-level
// ordering per worker is FIFO").
func (s *WorkerSession) Run() error {
	defer s.teardown()

	first, err := s.conn.Recv()
	if err != nil {
		return fmt.Errorf("read hello frame: %w", err)
	}
	if err := s.hello(string(first.Data)); err != nil {
		metrics.WorkerConnectionsTotal.WithLabelValues("rejected").Inc()
		_ = s.conn.Send(wire.Frame{Command: errorCode(err), Data: []byte(err.Error())})
		return err
	}
	metrics.WorkerConnectionsTotal.WithLabelValues("accepted").Inc()

	for {
		f, err := s.conn.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		resp, err := s.dispatcher.Dispatch(s.ctx, f)
		if err != nil {
			resp = wire.Frame{Command: errorCode(err), Data: []byte(err.Error())}
		}
		if err := s.conn.Send(resp); err != nil {
			return err
		}
	}
}

// teardown cancels every ReceiveTask the session owns and unregisters the
// worker (§5: "On connection loss, the session cancels all ReceiveTasks it
// owns"; §4.9/§3: worker registration "removed on connection loss").
func (s *WorkerSession) teardown() {
	s.cancel()

	s.tasksMu.Lock()
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
	s.tasksMu.Unlock()

	if s.name != "" {
		s.server.UnregisterWorker(s.name)
		metrics.WorkerConnectionsTotal.WithLabelValues("disconnected").Inc()
		s.server.PublishEvent(events.Event{
			Type:     events.EventWorkerDisconnected,
			Message:  "worker connection lost",
			Metadata: map[string]string{"worker": s.name},
		})
	}
	_ = s.conn.Close()
}

// newTask allocates a ReceiveTask bound to continuation, reachable from the
// session's task map for later end-receive/error delivery and for
// cancellation on connection loss. The task's own context is bounded by
// timeout (§5: "timeout_receiving_file bounds every wait for an inbound
// artifact").
func (s *WorkerSession) newTask(continuation func(context.Context, clustersync.Artifact), timeout time.Duration) *clustersync.ReceiveTask {
	id := fmt.Sprintf("%s-%d", s.name, s.taskSeq.Add(1))

	taskCtx, cancel := context.WithTimeout(s.ctx, timeout)
	task := clustersync.NewReceiveTask(taskCtx, id, continuation)

	s.tasksMu.Lock()
	s.tasks[id] = task
	s.cancels[id] = cancel
	s.tasksMu.Unlock()

	go func() {
		task.Await(s.ctx)
		s.tasksMu.Lock()
		delete(s.tasks, id)
		delete(s.cancels, id)
		s.tasksMu.Unlock()
	}()

	return task
}

// resolveTask binds the received artifact to the named task and signals its
// completion (`syn_i_w_m_e`/`syn_e_w_m_e` — §4.1 "end receive"). A task
// accepts one resolution: it leaves the task map here, so a later
// end-receive or error for the same id is answered not-found.
func (s *WorkerSession) resolveTask(taskID string, artifact clustersync.Artifact) error {
	s.tasksMu.Lock()
	task, ok := s.tasks[taskID]
	if ok {
		delete(s.tasks, taskID)
	}
	s.tasksMu.Unlock()
	if !ok {
		return clustererr.NotFound(fmt.Sprintf("unknown task-id %s", taskID))
	}
	task.Resolve(artifact)
	return nil
}

// unmergeAdapter adapts the server-supplied unmerge function to the
// clustersync.Unmerger shape ApplyFiles expects.
func (s *WorkerSession) unmergeAdapter(mergeType, stagingDir, mergeName string) ([]types.MergedMember, error) {
	return s.server.Unmerger()(mergeType, stagingDir, mergeName)
}

// errorCode renders the stable code of a ClusterError, or of a hello
// cluster-name/version mismatch error, as the response frame's command,
// falling back to a generic "error" command for anything else (§7
// propagation policy).
func errorCode(err error) string {
	var ce *clustererr.ClusterError
	if errors.As(err, &ce) {
		return string(ce.Code)
	}
	var nameErr *clustererr.ErrClusterNameMismatch
	if errors.As(err, &nameErr) {
		return string(clustererr.CodeClusterNameMismatch)
	}
	var versionErr *clustererr.ErrVersionMismatch
	if errors.As(err, &versionErr) {
		return string(clustererr.CodeVersionMismatch)
	}
	return "error"
}

// splitCommandArg splits "task-id rest" style payloads used by the
// end-receive and push commands (§4.1, §6).
func splitCommandArg(raw string) (head, rest string, ok bool) {
	idx := strings.IndexByte(raw, ' ')
	if idx < 0 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}

func okFrame(payload string) wire.Frame {
	return wire.Frame{Command: "ok", Data: []byte(payload)}
}

func errFrame(err error) wire.Frame {
	return wire.Frame{Command: errorCode(err), Data: []byte(err.Error())}
}

// currentStatus returns a snapshot of the session's sync-status record,
// used to publish an update to the server-owned HealthView (§4.8).
func (s *WorkerSession) currentStatus() clustersync.WorkerStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// stagingArchivePath is where a fully-received inbound archive is staged
// before it is unpacked, under the per-worker staging area.
func (s *WorkerSession) stagingArchivePath(name string) string {
	return filepath.Join(s.stagingDir, name)
}
