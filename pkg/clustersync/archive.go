package clustersync

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wardenhq/warden/pkg/types"
)

// manifestName is the fixed name of the manifest entry every archive
// carries (§6: "Each carries a manifest file named files_metadata.json").
const manifestName = "files_metadata.json"

// ArchiveManifest is the on-wire shape of files_metadata.json: relative
// path -> metadata.
type ArchiveManifest map[string]types.FileMetadata

// PackArchive writes a gzip-compressed tar containing the manifest plus,
// for each relative path in files, the file read from baseDir joined with
// that path. Used for the master→worker push (§4.2: files listed in
// missing ∪ shared, plus the manifest).
func PackArchive(w io.Writer, manifest ArchiveManifest, baseDir string, files []string) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeTarEntry(tw, manifestName, manifestBytes); err != nil {
		return fmt.Errorf("write manifest entry: %w", err)
	}

	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(baseDir, rel))
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		if err := writeTarEntry(tw, rel, data); err != nil {
			return fmt.Errorf("write entry %s: %w", rel, err)
		}
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0640,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// UnpackArchive decompresses a gzip-compressed tar into stagingDir,
// returning the parsed manifest. Every non-manifest entry is written as a
// regular file under stagingDir, preserving its relative path. Callers are
// responsible for removing stagingDir on every exit path (§5 resource
// hygiene).
func UnpackArchive(r io.Reader, stagingDir string) (ArchiveManifest, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var manifest ArchiveManifest

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
		}

		if hdr.Name == manifestName {
			if err := json.Unmarshal(data, &manifest); err != nil {
				return nil, fmt.Errorf("unmarshal manifest: %w", err)
			}
			continue
		}

		dest := filepath.Join(stagingDir, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
			return nil, fmt.Errorf("mkdir for %s: %w", hdr.Name, err)
		}
		if err := os.WriteFile(dest, data, 0640); err != nil {
			return nil, fmt.Errorf("write %s: %w", hdr.Name, err)
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("archive missing %s", manifestName)
	}
	return manifest, nil
}
