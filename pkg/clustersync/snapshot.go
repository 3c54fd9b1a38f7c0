package clustersync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/types"
)

// Merger builds the merged container representing a cluster-item-key's
// current file set, returning the bytes a snapshot entry is hashed over. It
// mirrors Unmerger's role: this package stays agnostic of the merge-file
// wire format, and the caller (pkg/master) supplies the concrete
// implementation (§4.6/§4.7).
type Merger func(mergeType, sourceDir, mergeName string) ([]byte, error)

// ComputeSnapshot walks every configured cluster-item-key under baseDir and
// builds the master's file-tree metadata map (§3 "master snapshot"). This is
// the function SnapshotLoop (§4.7) runs on its single-worker pool each
// cycle; callers run it off the main dispatch path and publish the result
// atomically.
//
// A non-merged key is walked recursively and each regular file becomes its
// own entry, keyed by its path relative to baseDir. A merged key calls merge
// once for its whole directory and becomes a single synthetic entry named
// "<key>/<merge-type>.merged", hashed over the built container — matching
// the shape Diff/ApplyFiles expect from a merged manifest entry. A
// configured key whose directory does not exist yet is skipped, not an
// error (a freshly-bootstrapped node may not have produced it yet).
func ComputeSnapshot(ctx context.Context, baseDir string, files map[string]config.FileConfig, merge Merger) (types.Snapshot, error) {
	snapshot := make(types.Snapshot)

	keys := make([]string, 0, len(files))
	for key := range files {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fc := files[key]
		dir := filepath.Join(baseDir, key)

		if fc.Merged {
			relPath, entry, err := computeMergedEntry(key, dir, fc, merge)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, err
			}
			snapshot[relPath] = entry
			continue
		}

		if err := walkPlainFiles(ctx, baseDir, dir, key, snapshot); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return snapshot, nil
}

func computeMergedEntry(key, dir string, fc config.FileConfig, merge Merger) (string, types.FileMetadata, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", types.FileMetadata{}, err
	}

	data, err := merge(fc.MergeType, dir, key)
	if err != nil {
		return "", types.FileMetadata{}, err
	}

	sum := md5.Sum(data)
	relPath := filepath.ToSlash(filepath.Join(key, fc.MergeType+".merged"))
	return relPath, types.FileMetadata{
		MD5:            hex.EncodeToString(sum[:]),
		Merged:         true,
		MergeType:      fc.MergeType,
		MergeName:      key,
		ClusterItemKey: key,
	}, nil
}

func walkPlainFiles(ctx context.Context, baseDir, dir, key string, snapshot types.Snapshot) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}

		sum, err := md5File(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		snapshot[filepath.ToSlash(rel)] = types.FileMetadata{
			MD5:            sum,
			ClusterItemKey: key,
		}
		return nil
	})
}

func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
