package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
	"github.com/wardenhq/warden/pkg/wire"
)

// runSyncIntegrity is the continuation bound to `syn_i_w_m` (§4.2). It is
// invoked by the owning ReceiveTask once the worker's manifest archive is
// fully received (or the wait failed/timed out).
func (s *WorkerSession) runSyncIntegrity(ctx context.Context, a clustersync.Artifact) {
	timer := metrics.NewTimer()

	if a.Err != nil {
		s.integrityLog.Warn().Err(a.Err).Msg("integrity artifact wait failed")
		s.slot.Release(clustersync.KindIntegrity)
		timer.ObserveDurationVec(metrics.IntegritySyncDuration, "error")
		return
	}

	archivePath := s.stagingArchivePath(a.Filename)
	stagingDir := filepath.Join(s.stagingDir, "integrity-"+filepath.Base(a.Filename))
	defer os.RemoveAll(stagingDir)
	defer os.Remove(archivePath)

	manifest, err := s.unpackArchiveFile(archivePath, stagingDir)
	if err != nil {
		s.integrityLog.Error().Err(err).Msg("failed to unpack integrity manifest")
		s.slot.Release(clustersync.KindIntegrity)
		timer.ObserveDurationVec(metrics.IntegritySyncDuration, "error")
		return
	}

	// Integrity check only needs the manifest, not the staged files (§4.2:
	// "deletes the staging directory").
	os.RemoveAll(stagingDir)

	worker := types.Snapshot(manifest)
	diff := clustersync.Diff(s.server.Snapshot(), worker)
	timer.ObserveDuration(metrics.IntegrityCheckDuration)

	metrics.IntegrityDiffTotal.WithLabelValues("shared").Add(float64(len(diff.Shared)))
	metrics.IntegrityDiffTotal.WithLabelValues("missing").Add(float64(len(diff.Missing)))
	metrics.IntegrityDiffTotal.WithLabelValues("extra").Add(float64(len(diff.Extra)))
	metrics.IntegrityDiffTotal.WithLabelValues("extra_valid").Add(float64(len(diff.ExtraValid)))

	s.statusMu.Lock()
	s.status.IntegrityCheck.EndMaster = time.Now()
	status := s.status
	s.statusMu.Unlock()
	s.server.UpdateWorkerStatus(s.name, status)

	s.server.PublishEvent(events.Event{
		Type:    events.EventIntegrityChecked,
		Message: "integrity check complete",
		Metadata: map[string]string{
			"worker": s.name,
			"shared": strconv.Itoa(len(diff.Shared)), "missing": strconv.Itoa(len(diff.Missing)),
			"extra": strconv.Itoa(len(diff.Extra)), "extra_valid": strconv.Itoa(len(diff.ExtraValid)),
		},
	})

	if diff.Empty() {
		_ = s.conn.Send(wire.Frame{Command: "syn_m_c_ok", Data: nil})
		s.slot.Release(clustersync.KindIntegrity)
		s.stampIntegritySyncEnd(diff.Totals, 0)
		metrics.FilesAppliedTotal.WithLabelValues("no_sync_needed").Inc()
		return
	}

	extraValidRequested := len(diff.ExtraValid) > 0
	s.slot.SetExtraValidRequested(extraValidRequested)

	s.statusMu.Lock()
	s.status.IntegritySync.TmpStartMaster = time.Now()
	s.status.IntegritySync.Totals = diff.Totals
	s.statusMu.Unlock()

	pushErr := s.pushIntegrityArchive(diff)
	if pushErr != nil {
		s.integrityLog.Error().Err(pushErr).Msg("integrity push failed")
		s.server.PublishEvent(events.Event{
			Type:     events.EventIntegritySyncFailed,
			Message:  pushErr.Error(),
			Metadata: map[string]string{"worker": s.name},
		})
	} else {
		s.server.PublishEvent(events.Event{
			Type:     events.EventIntegritySynced,
			Message:  "integrity push complete",
			Metadata: map[string]string{"worker": s.name},
		})
	}
	timer.ObserveDurationVec(metrics.IntegritySyncDuration, outcomeLabel(pushErr))

	if !extraValidRequested {
		s.slot.Release(clustersync.KindIntegrity)
		s.stampIntegritySyncEnd(diff.Totals, 0)
	}
	// If extra-valid was requested, the round stays open: §4.3 closes it.
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// stampIntegritySyncEnd promotes tmp-start-master to start-master and sets
// the end timestamp, matching §3: "promoted to start-master only when the
// sync round completes."
func (s *WorkerSession) stampIntegritySyncEnd(totals types.DiffTotals, totalExtraValid int) {
	s.statusMu.Lock()
	if s.status.IntegritySync.TmpStartMaster.IsZero() {
		s.status.IntegritySync.StartMaster = time.Now()
	} else {
		s.status.IntegritySync.StartMaster = s.status.IntegritySync.TmpStartMaster
	}
	s.status.IntegritySync.EndMaster = time.Now()
	s.status.IntegritySync.Totals = totals
	s.status.IntegritySync.TotalExtraValid += totalExtraValid
	status := s.status
	s.statusMu.Unlock()

	s.server.UpdateWorkerStatus(s.name, status)
}

// pushIntegrityArchive implements §4.2's push sequence: build an archive of
// missing ∪ shared files plus a files_metadata.json manifest holding the
// master's metadata for those same paths, begin a push session, stream it,
// and end or abort the push. The manifest carries no bucket labels and no
// extra or extra-valid entries.
func (s *WorkerSession) pushIntegrityArchive(diff clustersync.DiffResult) error {
	snapshot := s.server.Snapshot()
	cfg := s.server.Config()

	manifestOut := make(clustersync.ArchiveManifest)
	files := append(append([]string{}, diff.Missing...), diff.Shared...)
	for _, path := range files {
		manifestOut[path] = snapshot[path]
	}

	archiveFile, err := os.CreateTemp(s.stagingDir, "push-*.tar.gz")
	if err != nil {
		return err
	}
	archivePath := archiveFile.Name()
	defer os.Remove(archivePath)

	if err := clustersync.PackArchive(archiveFile, manifestOut, cfg.Staging.BaseDir, files); err != nil {
		archiveFile.Close()
		return err
	}
	if err := archiveFile.Close(); err != nil {
		return err
	}

	if err := s.conn.Send(wire.Frame{Command: "syn_m_c", Data: nil}); err != nil {
		return err
	}
	pushTaskFrame, err := s.conn.Recv()
	if err != nil {
		return err
	}
	pushTaskID := string(pushTaskFrame.Data)

	if err := s.streamArchive(archivePath); err != nil {
		_ = s.conn.Send(wire.Frame{Command: "syn_m_c_r", Data: []byte(pushTaskID + " " + err.Error())})
		return err
	}

	rel := filepath.Base(archivePath)
	return s.conn.Send(wire.Frame{Command: "syn_m_c_e", Data: []byte(pushTaskID + " " + rel)})
}

// streamArchive hands the archive to the underlying send-file facility
// (§4.2 step 3). That facility is part of the framed transport this module
// treats as an external collaborator (§1); here it is modeled as a direct
// connection send of the archive's bytes, since pkg/wire's Connection
// already frames arbitrary payloads.
func (s *WorkerSession) streamArchive(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.conn.Send(wire.Frame{Command: "syn_m_c_data", Data: data})
}

// unpackArchiveFile opens a staged archive file and unpacks it.
func (s *WorkerSession) unpackArchiveFile(archivePath, stagingDir string) (clustersync.ArchiveManifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return clustersync.UnpackArchive(f, stagingDir)
}
