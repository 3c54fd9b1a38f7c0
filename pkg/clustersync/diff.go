package clustersync

import "github.com/wardenhq/warden/pkg/types"

// DiffResult is the four-bucket classification produced by Diff: pure
// output, no side effects (§2: IntegrityDiffer is "a pure function").
type DiffResult struct {
	// Shared: present in both, MD5 differs — the master must push its copy
	// to update the worker. A path present in both with identical MD5 is in
	// no bucket at all.
	Shared []string
	// Missing: present in the master snapshot, absent from the worker.
	Missing []string
	// Extra: present in the worker, absent from the master snapshot, and
	// not a merged container (the worker has something the master neither
	// wants nor recognizes).
	Extra []string
	// ExtraValid: present in the worker, absent from the master snapshot,
	// and merged — the master wants these pushed back. A merged path present
	// on both sides is classified by MD5 like any other (Shared or no bucket).
	ExtraValid []string

	Totals types.DiffTotals
}

// Empty reports whether all four buckets are empty — the "no sync needed"
// case (§4.2, §8 boundary behaviors).
func (r DiffResult) Empty() bool {
	return len(r.Shared) == 0 && len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.ExtraValid) == 0
}

// Diff classifies a worker's reported file-tree metadata W against the
// master snapshot M into the four disjoint buckets (§2.4, §4.2):
//
//   - shared:      present in both, MD5 differs — master pushes its copy
//   - missing:     present in M, absent from W
//   - extra:       present in W, absent from M, not merged
//   - extra-valid: present in W, absent from M, merged
//
// A path present in both with identical MD5 falls into no bucket. Diffing a
// snapshot against itself yields all four buckets empty (§8 idempotence
// law) since every path then matches by both presence and MD5.
func Diff(master types.Snapshot, worker types.Snapshot) DiffResult {
	var result DiffResult

	for path, masterMeta := range master {
		workerMeta, present := worker[path]
		if !present {
			result.Missing = append(result.Missing, path)
			continue
		}
		if workerMeta.MD5 != masterMeta.MD5 {
			result.Shared = append(result.Shared, path)
		}
		// Identical MD5: no bucket.
	}

	for path, workerMeta := range worker {
		if _, present := master[path]; present {
			continue // already classified from the master side above
		}
		if workerMeta.Merged {
			result.ExtraValid = append(result.ExtraValid, path)
		} else {
			result.Extra = append(result.Extra, path)
		}
	}

	result.Totals = types.DiffTotals{
		Missing:    len(result.Missing),
		Shared:     len(result.Shared),
		Extra:      len(result.Extra),
		ExtraValid: len(result.ExtraValid),
	}
	return result
}
