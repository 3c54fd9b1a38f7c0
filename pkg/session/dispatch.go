package session

import (
	"context"
	"time"

	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/wire"
)

// Command codes, verbatim from §6.
const (
	cmdIntegrityProbe  = "syn_i_w_m_p"
	cmdAgentInfoProbe  = "syn_a_w_m_p"
	cmdBeginIntegrity  = "syn_i_w_m"
	cmdBeginExtraValid = "syn_e_w_m"
	cmdBeginAgentInfo  = "syn_a_w_m"
	cmdEndIntegrity    = "syn_i_w_m_e"
	cmdEndExtraValid   = "syn_e_w_m_e"
	cmdIntegrityError  = "syn_i_w_m_r"
	cmdDAPI            = "dapi"
	cmdDAPIRes         = "dapi_res"
	cmdDAPIErr         = "dapi_err"
	cmdGetNodes        = "get_nodes"
	cmdGetHealth       = "get_health"
	cmdGetNode         = "get_node"
	cmdSendSync        = "sendsync"
)

// registerHandlers binds every command in §6's table to its handler (§4.1).
// Unknown commands fall through to the dispatcher's fallback, set by the
// caller that wires this session into the generic server-base dispatcher.
func (s *WorkerSession) registerHandlers() {
	s.dispatcher.Register(cmdIntegrityProbe, s.handleIntegrityProbe)
	s.dispatcher.Register(cmdAgentInfoProbe, s.handleAgentInfoProbe)

	s.dispatcher.Register(cmdBeginIntegrity, s.handleBeginIntegrity)
	s.dispatcher.Register(cmdBeginExtraValid, s.handleBeginExtraValid)
	s.dispatcher.Register(cmdBeginAgentInfo, s.handleBeginAgentInfo)

	s.dispatcher.Register(cmdEndIntegrity, s.handleEndIntegrity)
	s.dispatcher.Register(cmdEndExtraValid, s.handleEndExtraValid)
	s.dispatcher.Register(cmdIntegrityError, s.handleIntegrityError)

	s.dispatcher.Register(cmdDAPI, s.handleDAPI)
	s.dispatcher.Register(cmdDAPIRes, s.handleDAPIRes)
	s.dispatcher.Register(cmdDAPIErr, s.handleDAPIErr)

	s.dispatcher.Register(cmdGetNodes, s.handleGetNodes)
	s.dispatcher.Register(cmdGetHealth, s.handleGetHealth)
	s.dispatcher.Register(cmdGetNode, s.handleGetNode)
	s.dispatcher.Register(cmdSendSync, s.handleSendSync)
}

// boolString renders a probe result the way the worker link expects: the
// literal strings "True"/"False" (the worker side of this protocol is not
// part of this module, but its boolean-as-string convention is, §4.1).
func boolString(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// handleIntegrityProbe answers `syn_i_w_m_p`. The first probe in a snapshot
// cycle also marks this worker in integrity-already-executed; every
// subsequent probe in the same cycle answers "False" regardless of slot
// state (§4.1, §8 scenario 3).
func (s *WorkerSession) handleIntegrityProbe(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	if !s.server.MarkIntegrityExecuted(s.name) {
		return okFrame(boolString(false)), nil
	}
	return okFrame(boolString(s.slot.Observe(clustersync.KindIntegrity))), nil
}

// handleAgentInfoProbe answers `syn_a_w_m_p`. No already-executed gate
// applies to agent-info (§4.1).
func (s *WorkerSession) handleAgentInfoProbe(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	return okFrame(boolString(s.slot.Observe(clustersync.KindAgentInfo))), nil
}

// handleBeginIntegrity answers `syn_i_w_m`: reserves integrity-free and
// allocates a ReceiveTask bound to sync_integrity (§4.1, §4.2).
func (s *WorkerSession) handleBeginIntegrity(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	if !s.slot.TryReserve(clustersync.KindIntegrity) {
		return wire.Frame{}, clustererr.WorkerSyncError("integrity slot already reserved")
	}

	s.statusMu.Lock()
	s.status.IntegrityCheck.StartMaster = time.Now()
	s.statusMu.Unlock()

	timeout := s.server.Config().Intervals.Communication.TimeoutReceivingFile
	task := s.newTask(s.runSyncIntegrity, timeout)
	return okFrame(task.ID), nil
}

// handleBeginExtraValid answers `syn_e_w_m`. Extra-valid shares
// integrity-free with the integrity round already in flight (§3: "integrity
// and extra-valid both take integrity-free") — it does not reserve the slot
// again, it allocates a task against the span sync_integrity already opened.
func (s *WorkerSession) handleBeginExtraValid(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	if s.slot.Observe(clustersync.KindIntegrity) {
		return wire.Frame{}, clustererr.WorkerSyncError("extra-valid begin without an open integrity round")
	}

	timeout := s.server.Config().Intervals.Communication.TimeoutReceivingFile
	task := s.newTask(s.runSyncExtraValid, timeout)
	return okFrame(task.ID), nil
}

// handleBeginAgentInfo answers `syn_a_w_m`: reserves agent-info-free and
// allocates a ReceiveTask bound to sync_wazuh_db_info (§4.1, §4.4). Unlike
// the file-based integrity/extra-valid rounds, the agent-info payload is a
// small JSON document that arrives inline with this same frame rather than
// through a staged-file end-receive step, so the task resolves immediately.
func (s *WorkerSession) handleBeginAgentInfo(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	if !s.slot.TryReserve(clustersync.KindAgentInfo) {
		return wire.Frame{}, clustererr.WorkerSyncError("agent-info slot already reserved")
	}

	s.statusMu.Lock()
	s.status.AgentInfoSync.StartMaster = time.Now()
	s.statusMu.Unlock()

	task := s.newTask(s.runSyncAgentInfo, s.server.Config().Intervals.Communication.TimeoutReceivingFile)
	task.Resolve(clustersync.Artifact{String: string(f.Data)})
	return okFrame(task.ID), nil
}

// handleEndIntegrity/handleEndExtraValid answer `syn_i_w_m_e`/`syn_e_w_m_e`:
// "task-id filename" binds the received filename to the task and signals
// its completion (§4.1).
func (s *WorkerSession) handleEndIntegrity(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	return s.handleEndReceive(f)
}

func (s *WorkerSession) handleEndExtraValid(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	return s.handleEndReceive(f)
}

func (s *WorkerSession) handleEndReceive(f wire.Frame) (wire.Frame, error) {
	taskID, filename, ok := splitCommandArg(string(f.Data))
	if !ok {
		return wire.Frame{}, clustererr.PayloadDecode("malformed end-receive payload", nil)
	}
	if err := s.resolveTask(taskID, clustersync.Artifact{Filename: filename}); err != nil {
		return wire.Frame{}, err
	}
	return okFrame(""), nil
}

// handleIntegrityError answers `syn_i_w_m_r`: the worker reports it could
// not complete its side of the round. The error is forwarded to the task's
// continuation when one is still pending, but the integrity gate is always
// reopened here directly — matching the original `process_sync_error_from_
// worker`, which frees integrity-free unconditionally rather than as a side
// effect of resolving a task. A round parked waiting for extra-valid (task
// already resolved) would otherwise never release the gate, since
// resolveTask returns not-found once the task has already been resolved
// (§4.1, §5(c), §7).
func (s *WorkerSession) handleIntegrityError(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	taskID, message, ok := splitCommandArg(string(f.Data))
	if !ok {
		taskID, message = string(f.Data), "worker-reported sync error"
	}

	defer s.slot.Release(clustersync.KindIntegrity)

	if err := s.resolveTask(taskID, clustersync.Artifact{Err: clustererr.WorkerSyncError(message)}); err != nil {
		return wire.Frame{}, err
	}
	return okFrame(""), nil
}

// handleSendSync answers `sendsync`: enqueue on the server-wide SendSync
// request queue (§4.1).
func (s *WorkerSession) handleSendSync(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	s.server.EnqueueSendSync(s.name, f.Data)
	return okFrame(""), nil
}
