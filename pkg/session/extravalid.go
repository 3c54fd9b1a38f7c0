package session

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
)

// runSyncExtraValid is the continuation bound to `syn_e_w_m` (§4.3). It
// always closes the integrity-sharing span: stamps integrity-sync end
// timestamps, clears extra-valid-requested, and releases the integrity
// slot, regardless of outcome.
func (s *WorkerSession) runSyncExtraValid(ctx context.Context, a clustersync.Artifact) {
	timer := metrics.NewTimer()
	defer func() {
		s.slot.Release(clustersync.KindIntegrity)
	}()

	if a.Err != nil {
		s.integritySyncLog.Warn().Err(a.Err).Msg("extra-valid artifact wait failed")
		s.stampIntegritySyncEnd(s.currentIntegrityTotals(), 0)
		timer.ObserveDurationVec(metrics.IntegritySyncDuration, "error")
		s.server.PublishEvent(events.Event{
			Type:     events.EventIntegritySyncFailed,
			Message:  a.Err.Error(),
			Metadata: map[string]string{"worker": s.name, "stage": "extra_valid"},
		})
		return
	}

	archivePath := s.stagingArchivePath(a.Filename)
	stagingDir := filepath.Join(s.stagingDir, "extra-valid-"+filepath.Base(a.Filename))
	defer os.RemoveAll(stagingDir)
	defer os.Remove(archivePath)

	manifest, err := s.unpackArchiveFile(archivePath, stagingDir)
	if err != nil {
		s.integritySyncLog.Error().Err(err).Msg("failed to unpack extra-valid archive")
		s.stampIntegritySyncEnd(s.currentIntegrityTotals(), 0)
		timer.ObserveDurationVec(metrics.IntegritySyncDuration, "error")
		s.server.PublishEvent(events.Event{
			Type:     events.EventIntegritySyncFailed,
			Message:  err.Error(),
			Metadata: map[string]string{"worker": s.name, "stage": "extra_valid"},
		})
		return
	}

	cfg := s.server.Config()
	tally := clustersync.ApplyFiles(ctx, manifest, stagingDir, cfg.Staging.BaseDir, cfg, s.unmergeAdapter, s.server.AgentDB().AgentExists)

	for key, n := range tally.Warnings {
		metrics.FileApplyWarningsTotal.Add(float64(n))
		s.integritySyncLog.Warn().Str("cluster_item_key", key).Int("count", n).Msg("file apply warnings")
	}
	for key, n := range tally.Errors {
		metrics.FileApplyErrorsTotal.Add(float64(n))
		s.integritySyncLog.Error().Str("cluster_item_key", key).Int("count", n).Msg("file apply errors")
	}
	metrics.FilesAppliedTotal.WithLabelValues("extra_valid").Add(float64(tally.TotalExtraValid))

	s.stampIntegritySyncEnd(s.currentIntegrityTotals(), tally.TotalExtraValid)
	timer.ObserveDurationVec(metrics.IntegritySyncDuration, "ok")

	s.server.PublishEvent(events.Event{
		Type:    events.EventIntegritySynced,
		Message: "extra-valid round complete",
		Metadata: map[string]string{
			"worker":            s.name,
			"total_extra_valid": strconv.Itoa(tally.TotalExtraValid),
		},
	})

	log.WithWorker(s.name).Info().
		Int("total_extra_valid", tally.TotalExtraValid).
		Int("warnings", sumValues(tally.Warnings)).
		Int("errors", sumValues(tally.Errors)).
		Msg("extra-valid round complete")
}

func (s *WorkerSession) currentIntegrityTotals() types.DiffTotals {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status.IntegritySync.Totals
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
