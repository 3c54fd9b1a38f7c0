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

func TestRunSyncExtraValidAppliesPlainFileAndReleasesSlot(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindIntegrity)
	s.slot.SetExtraValidRequested(true)

	destBase := t.TempDir()
	srv.cfg.Staging.BaseDir = destBase

	meta := types.FileMetadata{MD5: "abc", ClusterItemKey: "etc/"}
	filename := buildFixtureArchive(t, "etc/ossec.conf", meta, s.stagingDir)

	done := make(chan struct{})
	go func() {
		s.runSyncExtraValid(context.Background(), clustersync.Artifact{Filename: filename})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncExtraValid did not return")
	}

	if !s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to be reopened once extra-valid completes")
	}
	if s.slot.ExtraValidRequested() {
		t.Error("expected extra-valid-requested to be cleared on release")
	}

	if _, err := os.Stat(filepath.Join(destBase, "etc/ossec.conf")); err != nil {
		t.Errorf("expected file moved to destination: %v", err)
	}
}

func TestRunSyncExtraValidArtifactErrorStillReleasesSlot(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindIntegrity)
	s.slot.SetExtraValidRequested(true)

	done := make(chan struct{})
	go func() {
		s.runSyncExtraValid(context.Background(), clustersync.Artifact{Err: context.DeadlineExceeded})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncExtraValid did not return")
	}

	if !s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to be reopened even after an artifact error")
	}
}

func TestSumValues(t *testing.T) {
	total := sumValues(map[string]int{"a": 1, "b": 2, "c": 3})
	if total != 6 {
		t.Errorf("expected 6, got %d", total)
	}
}
