package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/types"
)

// buildFixtureArchive packs a single-file archive whose manifest entry
// matches meta, returning the archive's path alongside the source baseDir
// PackArchive reads the file from.
func buildFixtureArchive(t *testing.T, relPath string, meta types.FileMetadata, stagingDir string) string {
	t.Helper()
	baseDir := t.TempDir()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(baseDir, relPath)), 0750); err != nil {
		t.Fatalf("mkdir fixture dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, relPath), []byte("contents"), 0640); err != nil {
		t.Fatalf("write fixture file: %v", err)
	}

	archivePath := filepath.Join(stagingDir, "archive.tar.gz")
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive file: %v", err)
	}
	defer archiveFile.Close()

	manifest := clustersync.ArchiveManifest{relPath: meta}
	if err := clustersync.PackArchive(archiveFile, manifest, baseDir, []string{relPath}); err != nil {
		t.Fatalf("pack archive: %v", err)
	}
	return "archive.tar.gz"
}

func buildEmptyFixtureArchive(t *testing.T, stagingDir string) string {
	t.Helper()
	archivePath := filepath.Join(stagingDir, "archive.tar.gz")
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive file: %v", err)
	}
	defer archiveFile.Close()

	if err := clustersync.PackArchive(archiveFile, clustersync.ArchiveManifest{}, t.TempDir(), nil); err != nil {
		t.Fatalf("pack empty archive: %v", err)
	}
	return "archive.tar.gz"
}

func TestRunSyncIntegrityEmptyDiffReleasesSlot(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindIntegrity)

	filename := buildEmptyFixtureArchive(t, s.stagingDir)
	srv.snapshot = types.Snapshot{}

	done := make(chan struct{})
	go func() {
		s.runSyncIntegrity(context.Background(), clustersync.Artifact{Filename: filename})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncIntegrity did not return")
	}

	if s.slot.Observe(clustersync.KindIntegrity) != true {
		t.Error("expected integrity slot to be reopened after an empty diff")
	}
	if conn.lastSent().Command != "syn_m_c_ok" {
		t.Errorf("expected syn_m_c_ok, got %s", conn.lastSent().Command)
	}
}

func TestRunSyncIntegrityArtifactErrorReleasesSlot(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindIntegrity)

	done := make(chan struct{})
	go func() {
		s.runSyncIntegrity(context.Background(), clustersync.Artifact{Err: context.DeadlineExceeded})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncIntegrity did not return")
	}

	if !s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to be reopened after an artifact error")
	}
}

func TestRunSyncIntegrityNonEmptyDiffKeepsSlotForExtraValid(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindIntegrity)

	// Worker reports a merged file the master snapshot lacks: an
	// extra-valid bucket entry that keeps the round open for §4.3.
	workerMeta := types.FileMetadata{MD5: "newer", Merged: true, ClusterItemKey: "queue/agent-groups/"}
	filename := buildFixtureArchive(t, "queue/agent-groups/001", workerMeta, s.stagingDir)
	srv.snapshot = types.Snapshot{}

	done := make(chan struct{})
	go func() {
		s.runSyncIntegrity(context.Background(), clustersync.Artifact{Filename: filename})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncIntegrity did not return")
	}

	if s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to remain closed pending extra-valid")
	}
	if !s.slot.ExtraValidRequested() {
		t.Error("expected extra-valid-requested to be set")
	}
	if conn.lastSent().Command == "syn_m_c_ok" {
		t.Error("did not expect the no-sync-needed reply for a non-empty diff")
	}
}
