package session

import (
	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/dapi"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/localapi"
	"github.com/wardenhq/warden/pkg/types"
)

// ServerContext is the slice of MasterServer a WorkerSession looks up
// against. Sessions hold this as a back-reference, never as ownership (§3:
// "Sessions hold a back-reference to the server, lookup only, never
// ownership").
type ServerContext interface {
	// Config returns the master's loaded configuration.
	Config() config.Config

	// Snapshot returns the currently published master file-tree metadata
	// (§3, §9: "an immutable value swapped behind an atomic reference").
	Snapshot() types.Snapshot

	// MarkIntegrityExecuted records that name has probed for an integrity
	// grant this snapshot cycle, returning true the first time and false on
	// every subsequent call until SnapshotLoop clears the set (§4.1 scenario
	// 3).
	MarkIntegrityExecuted(name string) bool

	// RegisterWorker admits a worker after a successful hello. link is the
	// session's own connection, kept alongside the registration so a
	// concurrent dapi_fwd from another worker can reach it (§4.5
	// dapi.WorkerLookup).
	RegisterWorker(info types.WorkerInfo, link dapi.Link)

	// UnregisterWorker removes a worker's registration on connection loss.
	UnregisterWorker(name string)

	// UpdateWorkerStatus publishes a session's latest sync-status record so
	// the server-owned HealthView (§4.8) reflects rounds as they complete.
	UpdateWorkerStatus(name string, status clustersync.WorkerStatus)

	// Correlator returns the server-wide DAPI correlator.
	Correlator() *dapi.Correlator

	// LocalDispatch executes a command against the synchronous local
	// command table (§4.5 "otherwise -> dispatches locally").
	LocalDispatch(command string, data []byte) ([]byte, error)

	// LocalAPI returns the local-API client registry, used to forward
	// dapi_err payloads (§4.1) and late dapi_res deliveries (§4.5).
	LocalAPI() localapi.Clients

	// AgentDB returns the agent-info database client.
	AgentDB() agentdb.Client

	// Unmerger returns the merged-file splitter used by ApplyFiles (§4.6).
	Unmerger() clustersync.Unmerger

	// EnqueueSendSync enqueues a SendSync request on the server-wide queue
	// (§4.1 `sendsync`).
	EnqueueSendSync(workerName string, payload []byte)

	// HealthView assembles the get_health/get_nodes projection (§4.8),
	// honoring the optional node-name filter.
	HealthView(filter []string) clustersync.HealthDocument

	// PublishEvent records a cluster-sync lifecycle event (worker
	// connect/disconnect, sync round outcome, DAPI timeout) on the
	// server-wide broker.
	PublishEvent(evt events.Event)
}
