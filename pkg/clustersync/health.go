package clustersync

import (
	"time"

	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/types"
)

// timestampLayout is the canonical textual form sync-status timestamps
// serialize to (§4.1, §8: epoch-zero dates round-trip as "n/a").
const timestampLayout = "2006-01-02 15:04:05"

// naTimestamp is the serialized form of types.EpochZero.
const naTimestamp = "n/a"

// WorkerStatus bundles the three per-session sync-status records (§3).
type WorkerStatus struct {
	IntegrityCheck types.IntegrityCheckStatus
	IntegritySync  types.IntegritySyncStatus
	AgentInfoSync  types.AgentInfoSyncStatus
}

// NodeInfo is the static identity half of a health-document entry.
type NodeInfo struct {
	Name     string
	NodeType string
	Version  string
}

// NodeHealth is one entry of the assembled health document: the node's
// static info plus its serialized status block. TmpStartMaster is never
// included — it is internal staging, never exposed externally (§3, §4.8:
// "'Temporary' status fields... are omitted from the projection").
type NodeHealth struct {
	Info          NodeInfo
	LastKeepAlive string
	ActiveAgents  int
	Status        map[string]interface{}
}

// HealthDocument is the full get_health/get_nodes projection (§4.8).
type HealthDocument struct {
	NConnectedNodes int
	Nodes           map[string]NodeHealth
}

// timestampOrNA serializes a status timestamp, mapping the epoch-zero
// sentinel to "n/a" (§3, §8 round-trip law).
func timestampOrNA(t time.Time) string {
	if t.Equal(types.EpochZero) {
		return naTimestamp
	}
	return t.UTC().Format(timestampLayout)
}

func (s WorkerStatus) toDict() map[string]interface{} {
	return map[string]interface{}{
		"integrity_check": map[string]string{
			"date_start_master": timestampOrNA(s.IntegrityCheck.StartMaster),
			"date_end_master":   timestampOrNA(s.IntegrityCheck.EndMaster),
		},
		"integrity_sync": map[string]interface{}{
			"date_start_master": timestampOrNA(s.IntegritySync.StartMaster),
			"date_end_master":   timestampOrNA(s.IntegritySync.EndMaster),
			"total_extra_valid": s.IntegritySync.TotalExtraValid,
			"total_files":       s.IntegritySync.Totals,
		},
		"agent_info_sync": map[string]interface{}{
			"date_start_master": timestampOrNA(s.AgentInfoSync.StartMaster),
			"date_end_master":   timestampOrNA(s.AgentInfoSync.EndMaster),
			"n_synced_chunks":   s.AgentInfoSync.NSyncedChunks,
		},
	}
}

// BuildHealthView assembles {n_connected_nodes, nodes: {...}} (§4.8).
// masterName/masterInfo represent the master's own entry, which has no
// keepalive timestamp and is never queried against the agent database.
// filter, when non-empty, restricts the projection to the named workers
// (plus the master, if named).
func BuildHealthView(
	masterName string,
	masterInfo NodeInfo,
	workers map[string]types.WorkerInfo,
	statuses map[string]WorkerStatus,
	agentDB agentdb.Client,
	filter []string,
) HealthDocument {
	included := func(name string) bool {
		if len(filter) == 0 {
			return true
		}
		for _, f := range filter {
			if f == name {
				return true
			}
		}
		return false
	}

	doc := HealthDocument{Nodes: make(map[string]NodeHealth)}

	if included(masterName) {
		doc.Nodes[masterName] = NodeHealth{
			Info:   masterInfo,
			Status: statuses[masterName].toDict(),
		}
	}

	for name, worker := range workers {
		if !included(name) {
			continue
		}

		activeAgents := 0
		if agentDB != nil {
			if count, err := agentDB.ActiveAgentCount(name); err == nil {
				activeAgents = count
			}
		}

		doc.Nodes[name] = NodeHealth{
			Info: NodeInfo{
				Name:     worker.Name,
				NodeType: worker.NodeType,
				Version:  worker.Version,
			},
			LastKeepAlive: formatKeepAlive(worker.LastKeepAlive),
			ActiveAgents:  activeAgents,
			Status:        statuses[name].toDict(),
		}
		doc.NConnectedNodes++
	}

	return doc
}

// formatKeepAlive converts last-keep-alive to the canonical textual form,
// only meaningful for non-master entries (§4.8).
func formatKeepAlive(t time.Time) string {
	if t.IsZero() {
		return naTimestamp
	}
	return t.UTC().Format(timestampLayout)
}
