package types

import "time"

// EpochZero is the sentinel value meaning "never happened" for a sync
// timestamp field. It round-trips to "n/a" when serialized for a health
// document (see WorkerStatus.toDict in pkg/clustersync).
var EpochZero = time.Time{}

// NodeRole distinguishes the two peer roles in the cluster link.
type NodeRole string

const (
	NodeRoleMaster NodeRole = "master"
	NodeRoleWorker NodeRole = "worker"
)

// WorkerInfo is the registration record created on a worker's hello
// exchange and removed when its connection is lost.
type WorkerInfo struct {
	Name           string
	ClusterName    string
	NodeType       string
	Version        string
	Endpoint       string
	LastKeepAlive  time.Time
	ConnectedSince time.Time
}

// IntegrityCheckStatus tracks the comparison step: worker sends a manifest,
// the master diffs it against the snapshot, and replies.
type IntegrityCheckStatus struct {
	StartMaster time.Time
	EndMaster   time.Time
}

// DiffTotals are the four-bucket counts produced by the integrity diff.
type DiffTotals struct {
	Missing    int
	Shared     int
	Extra      int
	ExtraValid int
}

// IntegritySyncStatus tracks the follow-on push/extra-valid round. TmpStartMaster
// is internal staging, never exposed via HealthView; it is promoted to
// StartMaster only when the round completes (success or final failure).
type IntegritySyncStatus struct {
	TmpStartMaster  time.Time
	StartMaster     time.Time
	EndMaster       time.Time
	TotalExtraValid int
	Totals          DiffTotals
}

// AgentInfoSyncStatus tracks the agent-info database sync round.
type AgentInfoSyncStatus struct {
	StartMaster   time.Time
	EndMaster     time.Time
	NSyncedChunks int
}

// FileMetadata is one entry of a master snapshot or worker manifest: the
// value half of relative-file-path -> metadata.
type FileMetadata struct {
	MD5           string `json:"md5"`
	Merged        bool   `json:"merged"`
	MergeType     string `json:"merge_type,omitempty"`
	MergeName     string `json:"merge_name,omitempty"`
	ClusterItemKey string `json:"cluster_item_key"`
}

// Snapshot is the master's file-tree metadata map. Readers capture a local
// handle and never observe a value mixed between two recompute cycles.
type Snapshot map[string]FileMetadata

// ClusterItemConfig is the per cluster-item-key policy: ownership and
// permissions applied by the safe-move step of process_files_from_worker.
type ClusterItemConfig struct {
	Permissions uint32
	Owner       string
	Group       string
}

// AgentInfoPayload is the JSON document carried by `syn_a_w_m` chunks.
type AgentInfoPayload struct {
	SetDataCommand string   `json:"set_data_command"`
	Chunks         []string `json:"chunks"`
}

// AgentInfoResult is the JSON document sent back in `syn_m_a_e`.
type AgentInfoResult struct {
	UpdatedChunks int      `json:"updated_chunks"`
	ErrorMessages []string `json:"error_messages"`
}

// MergedMember is one unmerged entry extracted from a merged container file:
// a per-agent path, its raw bytes, and the mtime string as it appeared in
// the merge index ("YYYY-MM-DD HH:MM:SS[.ffffff]").
type MergedMember struct {
	Path      string
	Bytes     []byte
	MTimeText string
}
