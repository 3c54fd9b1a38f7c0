package clustersync

import (
	"testing"

	"github.com/wardenhq/warden/pkg/types"
)

func TestDiffIdenticalSnapshotsAllBucketsEmpty(t *testing.T) {
	snapshot := types.Snapshot{
		"etc/shared/agent.conf": {MD5: "A"},
		"etc/shared/ossec.conf": {MD5: "B"},
	}

	result := Diff(snapshot, snapshot)
	if !result.Empty() {
		t.Errorf("expected all buckets empty diffing snapshot against itself, got %+v", result)
	}
}

func TestDiffMissingAndExtraValid(t *testing.T) {
	master := types.Snapshot{
		"a": {MD5: "A"},
		"b": {MD5: "B"},
	}
	worker := types.Snapshot{
		"a": {MD5: "A"},
		"c": {MD5: "C", Merged: true, ClusterItemKey: "queue/agent-groups/"},
	}

	result := Diff(master, worker)

	if !contains(result.Missing, "b") {
		t.Errorf("expected b in missing, got %v", result.Missing)
	}
	if !contains(result.ExtraValid, "c") {
		t.Errorf("expected c in extra-valid, got %v", result.ExtraValid)
	}
	if len(result.Extra) != 0 {
		t.Errorf("expected no extra entries, got %v", result.Extra)
	}
}

func TestDiffExtraNonMergedFile(t *testing.T) {
	master := types.Snapshot{}
	worker := types.Snapshot{
		"queue/agent-groups/leftover": {MD5: "X", Merged: false},
	}

	result := Diff(master, worker)

	if !contains(result.Extra, "queue/agent-groups/leftover") {
		t.Errorf("expected leftover file classified extra, got %+v", result)
	}
	if len(result.ExtraValid) != 0 {
		t.Errorf("expected no extra-valid entries, got %v", result.ExtraValid)
	}
}

func TestDiffStaleWorkerCopyClassifiedShared(t *testing.T) {
	master := types.Snapshot{"a": {MD5: "A2"}}
	worker := types.Snapshot{"a": {MD5: "A1", Merged: false}}

	result := Diff(master, worker)

	if !contains(result.Shared, "a") {
		t.Errorf("expected stale worker copy of a classified shared (master pushes its copy), got %+v", result)
	}
	if len(result.Missing) != 0 {
		t.Errorf("expected no missing entries, got %v", result.Missing)
	}
}

func TestDiffIdenticalPathClassifiedInNoBucket(t *testing.T) {
	master := types.Snapshot{"a": {MD5: "A"}}
	worker := types.Snapshot{"a": {MD5: "A"}}

	result := Diff(master, worker)

	if !result.Empty() {
		t.Errorf("expected identical path to land in no bucket, got %+v", result)
	}
}

func TestDiffEmptyOnBothSides(t *testing.T) {
	result := Diff(types.Snapshot{}, types.Snapshot{})
	if !result.Empty() {
		t.Errorf("expected empty diff for two empty snapshots, got %+v", result)
	}
	if result.Totals.Missing != 0 || result.Totals.Shared != 0 {
		t.Errorf("expected zeroed totals, got %+v", result.Totals)
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
