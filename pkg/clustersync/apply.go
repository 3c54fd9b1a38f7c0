package clustersync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/types"
)

// reservedMasterFile is the one filename the master refuses to accept from
// a worker regardless of cluster-item-key (§4.6 step 1): workers must never
// overwrite the master's own credential file.
const reservedMasterFile = "client.keys"

// mtimeLayouts are the two accepted precisions for a merged member's mtime
// text (§8 boundary behavior): with and without fractional seconds.
var mtimeLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// ApplyTally aggregates the warning/error counters produced by ApplyFiles,
// keyed by cluster-item-key (§4.6 error taxonomy).
type ApplyTally struct {
	Warnings        map[string]int
	Errors          map[string]int
	TotalExtraValid int
}

func newApplyTally() *ApplyTally {
	return &ApplyTally{Warnings: make(map[string]int), Errors: make(map[string]int)}
}

func (t *ApplyTally) addWarning(key string) { t.Warnings[key]++ }
func (t *ApplyTally) addError(key string)   { t.Errors[key]++ }

// Unmerger splits a merged container file into its per-agent members. It is
// supplied by the caller so archive.go stays agnostic of the merge file
// format; pkg/session wires the concrete implementation.
type Unmerger func(mergeType, stagingDir, mergeName string) ([]types.MergedMember, error)

// AgentExists reports whether an agent id is known to the master, used to
// skip merged members belonging to agents the master has never heard of
// (§4.6 step 2).
type AgentExists func(agentID string) bool

// ApplyFiles implements process_files_from_worker + update_file (§4.6): for
// each (relative-path, metadata) pair in the manifest, either unmerges and
// applies per-agent members or moves the file directly to its destination.
// It never aborts on a per-file failure; warnings/errors accumulate in the
// returned tally and the caller logs them after the pass completes.
func ApplyFiles(ctx context.Context, manifest ArchiveManifest, stagingDir, destBase string, cfg config.Config, unmerge Unmerger, agentExists AgentExists) *ApplyTally {
	tally := newApplyTally()

	for name, meta := range manifest {
		if filepath.Base(name) == reservedMasterFile {
			tally.addWarning(meta.ClusterItemKey)
			continue
		}

		if meta.Merged {
			applyMergedFile(ctx, name, meta, stagingDir, destBase, cfg, unmerge, agentExists, tally)
		} else {
			applyPlainFile(name, meta, stagingDir, destBase, cfg, tally)
		}
	}

	return tally
}

func applyMergedFile(ctx context.Context, name string, meta types.FileMetadata, stagingDir, destBase string, cfg config.Config, unmerge Unmerger, agentExists AgentExists, tally *ApplyTally) {
	members, err := unmerge(meta.MergeType, stagingDir, meta.MergeName)
	if err != nil {
		tally.addError(meta.ClusterItemKey)
		return
	}

	perm := cfg.PermissionsFor(meta.ClusterItemKey)

	for _, member := range members {
		if ctx.Err() != nil {
			return
		}
		agentID := filepath.Base(member.Path)
		if !agentExists(agentID) {
			tally.addWarning(meta.ClusterItemKey)
			yield(ctx)
			continue
		}

		if err := applyMergedMember(member, destBase, perm); err != nil {
			if _, ok := err.(*skipError); ok {
				yield(ctx)
				continue
			}
			tally.addError(meta.ClusterItemKey)
			yield(ctx)
			continue
		}

		tally.TotalExtraValid++
		yield(ctx)
	}
}

// skipError marks a no-op outcome (stale mtime) that is neither a warning
// nor an error.
type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }

func applyMergedMember(member types.MergedMember, destBase string, perm os.FileMode) error {
	mtime, err := parseMTime(member.MTimeText)
	if err != nil {
		return fmt.Errorf("parse mtime %q: %w", member.MTimeText, err)
	}

	dest := filepath.Join(destBase, member.Path)

	if info, err := os.Stat(dest); err == nil {
		if info.ModTime().UTC().Truncate(time.Second).After(mtime.Truncate(time.Second)) {
			return &skipError{reason: "destination newer than incoming member"}
		}
	}

	tmp := filepath.Join(destBase, "queue", "cluster", ".staging-"+filepath.Base(member.Path))
	if err := os.MkdirAll(filepath.Dir(tmp), 0750); err != nil {
		return fmt.Errorf("mkdir staging: %w", err)
	}
	if err := os.WriteFile(tmp, member.Bytes, perm); err != nil {
		return fmt.Errorf("write staging file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return fmt.Errorf("mkdir destination: %w", err)
	}
	if err := safeMove(tmp, dest, perm, mtime); err != nil {
		return fmt.Errorf("move to destination: %w", err)
	}
	return nil
}

func applyPlainFile(name string, meta types.FileMetadata, stagingDir, destBase string, cfg config.Config, tally *ApplyTally) {
	src := filepath.Join(stagingDir, name)
	dest := filepath.Join(destBase, name)
	perm := cfg.PermissionsFor(meta.ClusterItemKey)

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		tally.addError(meta.ClusterItemKey)
		return
	}
	if err := safeMove(src, dest, perm, time.Time{}); err != nil {
		tally.addError(meta.ClusterItemKey)
	}
}

// safeMove moves src to dest, applying perm and, if mtime is non-zero,
// setting (atime, mtime) to it (§4.6 step 2: "atomically move-with-metadata
// to the destination").
func safeMove(src, dest string, perm os.FileMode, mtime time.Time) error {
	if err := os.Chmod(src, perm); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err != nil {
		return err
	}
	if !mtime.IsZero() {
		return os.Chtimes(dest, mtime, mtime)
	}
	return nil
}

// parseMTime accepts both precisions named in §8: "YYYY-MM-DD HH:MM:SS" and
// "YYYY-MM-DD HH:MM:SS.ffffff".
func parseMTime(text string) (time.Time, error) {
	var lastErr error
	for _, layout := range mtimeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// yield is the cooperative checkpoint after each merged member (§4.6 step 2:
// "so that other tasks make progress"). Go's preemptive scheduler does not
// need this for fairness, but it gives a cancellation point so a dropped
// connection can interrupt a long merged-file pass promptly.
func yield(ctx context.Context) {
	select {
	case <-ctx.Done():
	default:
		runtime.Gosched()
	}
}
