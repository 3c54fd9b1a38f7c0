package session

import (
	"context"
	"sync"

	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/wire"
)

// stringRegistry is the per-session "received-string registry" §4.5 refers
// to: the generic transport (out of scope, §1) deposits a fully-received
// string artifact here keyed by an id it assigns, and ProcessDAPIRes pops it
// by that id. A plain mutex-guarded map is sufficient since deposits and
// pops both happen on this session's own connection.
type stringRegistry struct {
	mu     sync.Mutex
	values map[string]string
}

func newStringRegistry() *stringRegistry {
	return &stringRegistry{values: make(map[string]string)}
}

// Deposit records a received string under id, called by the transport layer
// once a streamed string artifact completes.
func (r *stringRegistry) Deposit(id, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[id] = value
}

// PopString implements dapi.StringStore.
func (r *stringRegistry) PopString(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	delete(r.values, id)
	return v, ok
}

// handleDAPI answers `dapi` (W→M): the worker forwards a DAPI request that
// originated at its own local API, asking the master to execute it against
// the master's local API and reply asynchronously. Payload is
// "<request-id> <local-command> <payload>"; the reply races independently
// of this handler's own return so the per-connection FIFO dispatch loop
// (§5) is not blocked by a potentially slow local dispatch.
func (s *WorkerSession) handleDAPI(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	requestID, rest, ok := splitCommandArg(string(f.Data))
	if !ok {
		return wire.Frame{}, clustererr.PayloadDecode("malformed dapi payload", nil)
	}
	command, payload, ok := splitCommandArg(rest)
	if !ok {
		command, payload = rest, ""
	}

	go s.executeLocalDAPIRequest(requestID, command, payload)
	return okFrame(""), nil
}

func (s *WorkerSession) executeLocalDAPIRequest(requestID, command, payload string) {
	result, err := s.server.LocalDispatch(command, []byte(payload))
	if err != nil {
		_ = s.conn.Send(wire.Frame{Command: "dapi_err", Data: []byte(requestID + " " + err.Error())})
		return
	}
	_ = s.conn.Send(wire.Frame{Command: "dapi_res", Data: append([]byte(requestID+" "), result...)})
}

// handleDAPIRes answers `dapi_res` (§4.5 process_dapi_res): "<request-id>
// <string-id>". Resolves a pending master-initiated request if one is
// waiting, else forwards the payload to a local-API client named by the
// request-id, else fails as unknown.
func (s *WorkerSession) handleDAPIRes(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	if err := s.server.Correlator().ProcessDAPIRes(string(f.Data), s.strings, localResponder{s.server}); err != nil {
		return wire.Frame{}, err
	}
	return okFrame(""), nil
}

// handleDAPIErr answers `dapi_err` (§4.1): "<client-name> <payload>" is
// forwarded to the named local-API client.
func (s *WorkerSession) handleDAPIErr(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	clientName, payload, ok := splitCommandArg(string(f.Data))
	if !ok {
		return wire.Frame{}, clustererr.PayloadDecode("malformed dapi_err payload", nil)
	}
	if !s.server.LocalAPI().ForwardError(clientName, []byte(payload)) {
		return wire.Frame{}, clustererr.NotFound("local-API client " + clientName + " not connected")
	}
	return okFrame(""), nil
}

// localResponder adapts ServerContext.LocalAPI to dapi.LateResponder.
type localResponder struct{ server ServerContext }

func (l localResponder) Forward(clientName string, payload []byte) bool {
	return l.server.LocalAPI().Forward(clientName, payload)
}

func (l localResponder) ForwardError(clientName string, payload []byte) bool {
	return l.server.LocalAPI().ForwardError(clientName, payload)
}
