package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
	"github.com/wardenhq/warden/pkg/wire"
)

func marshalAgentInfoResult(result types.AgentInfoResult) ([]byte, error) {
	return json.Marshal(result)
}

// runSyncAgentInfo is the continuation bound to `syn_a_w_m` (§4.4). It is
// invoked as soon as the inline payload resolves (see handleBeginAgentInfo).
func (s *WorkerSession) runSyncAgentInfo(ctx context.Context, a clustersync.Artifact) {
	timer := metrics.NewTimer()
	defer s.slot.Release(clustersync.KindAgentInfo)

	if a.Err != nil {
		s.sendAgentInfoError(a.Err)
		s.stampAgentInfoEnd(0)
		timer.ObserveDurationVec(metrics.AgentInfoSyncDuration, "error")
		s.publishAgentInfoSyncFailed(a.Err)
		return
	}
	if a.String == "" {
		err := clustererr.PayloadDecode("agent-info string artifact not found", nil)
		s.sendAgentInfoError(err)
		s.stampAgentInfoEnd(0)
		timer.ObserveDurationVec(metrics.AgentInfoSyncDuration, "error")
		s.publishAgentInfoSyncFailed(err)
		return
	}

	payload, err := clustersync.ParseAgentInfoPayload(a.String)
	if err != nil {
		s.sendAgentInfoError(err)
		s.stampAgentInfoEnd(0)
		timer.ObserveDurationVec(metrics.AgentInfoSyncDuration, "error")
		s.publishAgentInfoSyncFailed(err)
		return
	}

	result := clustersync.SyncAgentInfo(s.server.AgentDB(), payload)
	metrics.AgentInfoChunksSynced.Add(float64(result.UpdatedChunks))
	metrics.AgentInfoChunkErrors.Add(float64(len(result.ErrorMessages)))

	data, err := marshalAgentInfoResult(result)
	if err != nil {
		s.sendAgentInfoError(err)
		s.stampAgentInfoEnd(result.UpdatedChunks)
		timer.ObserveDurationVec(metrics.AgentInfoSyncDuration, "error")
		s.publishAgentInfoSyncFailed(err)
		return
	}

	_ = s.conn.Send(wire.Frame{Command: "syn_m_a_e", Data: data})
	s.stampAgentInfoEnd(result.UpdatedChunks)
	timer.ObserveDurationVec(metrics.AgentInfoSyncDuration, "ok")

	s.server.PublishEvent(events.Event{
		Type:    events.EventAgentInfoSynced,
		Message: "agent-info sync round complete",
		Metadata: map[string]string{
			"worker":         s.name,
			"updated_chunks": strconv.Itoa(result.UpdatedChunks),
		},
	})

	s.agentInfoLog.Info().
		Int("updated_chunks", result.UpdatedChunks).
		Int("errors", len(result.ErrorMessages)).
		Msg("agent-info sync round complete")
}

func (s *WorkerSession) publishAgentInfoSyncFailed(err error) {
	s.server.PublishEvent(events.Event{
		Type:     events.EventAgentInfoSyncFailed,
		Message:  err.Error(),
		Metadata: map[string]string{"worker": s.name},
	})
}

func (s *WorkerSession) sendAgentInfoError(err error) {
	s.agentInfoLog.Warn().Err(err).Msg("agent-info sync failed")
	_ = s.conn.Send(wire.Frame{Command: "syn_m_a_err", Data: []byte(err.Error())})
}

func (s *WorkerSession) stampAgentInfoEnd(nSynced int) {
	s.statusMu.Lock()
	s.status.AgentInfoSync.EndMaster = time.Now()
	s.status.AgentInfoSync.NSyncedChunks = nSynced
	status := s.status
	s.statusMu.Unlock()

	s.server.UpdateWorkerStatus(s.name, status)
}
