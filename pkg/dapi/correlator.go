package dapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/pkg/clustererr"
)

// Command names relevant to the correlator (§6 command codes).
const (
	CommandDAPI    = "dapi"
	CommandDAPIFwd = "dapi_fwd"
)

// Link sends a command+payload frame to one peer (a worker connection, or
// this session's own connection for the "dapi" case). It is the minimal
// slice of pkg/wire.Connection the correlator needs.
type Link interface {
	Send(command string, data []byte) error
}

// WorkerLookup resolves a worker name to its live link, used for dapi_fwd
// targets (§4.5: "if that client is currently connected...").
type WorkerLookup interface {
	Lookup(workerName string) (Link, bool)
}

// LocalDispatch executes a command against the synchronous local command
// table (§4.5 "otherwise -> dispatches locally").
type LocalDispatch func(command string, data []byte) ([]byte, error)

// StringStore pops a previously received string artifact by id, used to
// pull the dapi_res payload out of the receive-string registry (§4.5).
type StringStore interface {
	PopString(id string) (string, bool)
}

// LateResponder forwards a response or error to a locally-connected API
// client when the request-id no longer has a pending table entry.
type LateResponder interface {
	Forward(clientName string, payload []byte) bool
	ForwardError(clientName string, payload []byte) bool
}

// Correlator implements execute/process_dapi_res (§4.5).
type Correlator struct {
	table   *Table
	workers WorkerLookup
	timeout time.Duration
}

// PendingCount reports how many DAPI requests are currently in flight,
// surfaced via pkg/metrics.MasterView.PendingDAPIRequestCount.
func (c *Correlator) PendingCount() int {
	return c.table.Count()
}

// NewCorrelator builds a correlator bound to a worker registry and the
// configured DAPI round-trip timeout.
func NewCorrelator(workers WorkerLookup, timeout time.Duration) *Correlator {
	return &Correlator{table: NewTable(), workers: workers, timeout: timeout}
}

// Execute allocates a fresh request-id and routes command/data per §4.5:
//   - dapi_fwd: split data as "<client-name> <payload>", forward to that
//     worker's link if connected, else fail with not-found.
//   - dapi: send on own, the caller-supplied link (this worker's own
//     connection).
//   - anything else: dispatch locally via the synchronous command table.
//
// own is the requesting session's own link, used for the plain "dapi" case.
// If waitForComplete is false, the wait is bounded by the correlator's
// configured timeout; otherwise it blocks until ctx is done.
func (c *Correlator) Execute(ctx context.Context, own Link, command string, data []byte, waitForComplete bool, local LocalDispatch) ([]byte, error) {
	switch command {
	case CommandDAPIFwd:
		return c.executeRemote(ctx, data, waitForComplete, true)
	case CommandDAPI:
		return c.executeOwn(ctx, own, data, waitForComplete)
	default:
		return local(command, data)
	}
}

func (c *Correlator) executeRemote(ctx context.Context, data []byte, waitForComplete, isFwd bool) ([]byte, error) {
	clientName, payload, ok := splitOnce(string(data))
	if !ok {
		return nil, clustererr.NotFound("malformed dapi_fwd payload")
	}

	link, found := c.workers.Lookup(clientName)
	if !found {
		return nil, clustererr.NotFound(fmt.Sprintf("worker %s not found", clientName))
	}

	requestID := uuid.NewString()
	entry := c.table.Insert(requestID)

	if err := link.Send(CommandDAPI, []byte(requestID+" "+payload)); err != nil {
		c.table.Remove(requestID)
		return nil, clustererr.Infrastructure("send dapi to worker", err)
	}

	return c.await(ctx, requestID, entry, waitForComplete)
}

func (c *Correlator) executeOwn(ctx context.Context, own Link, data []byte, waitForComplete bool) ([]byte, error) {
	if own == nil {
		return nil, clustererr.NotFound("no active link for dapi request")
	}

	requestID := uuid.NewString()
	entry := c.table.Insert(requestID)

	if err := own.Send(CommandDAPI, append([]byte(requestID+" "), data...)); err != nil {
		c.table.Remove(requestID)
		return nil, clustererr.Infrastructure("send dapi on own link", err)
	}

	return c.await(ctx, requestID, entry, waitForComplete)
}

func (c *Correlator) await(ctx context.Context, requestID string, entry *pendingEntry, waitForComplete bool) ([]byte, error) {
	if waitForComplete {
		payload, ok := entry.Wait(ctx.Done())
		if !ok {
			return nil, ctx.Err()
		}
		c.table.Remove(requestID)
		return payload, nil
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	payload, ok := entry.Wait(timer.C)
	if !ok {
		// Timeout: leave the entry for the eventual late response to
		// discard (§4.5, §9) — do not Remove here.
		return nil, clustererr.Timeout(fmt.Sprintf("dapi request %s timed out", requestID))
	}
	c.table.Remove(requestID)
	return payload, nil
}

// ProcessDAPIRes implements process_dapi_res (§4.5): data is
// "<request-id> <string-id>". If the request-id is pending, the string is
// popped from strings and delivered to the waiter; otherwise it is forwarded
// to a local-API client by that same request-id, or fails as unknown.
func (c *Correlator) ProcessDAPIRes(data string, strings StringStore, late LateResponder) error {
	requestID, stringID, ok := splitOnce(data)
	if !ok {
		return clustererr.PayloadDecode("malformed dapi_res payload", nil)
	}

	if c.table.Has(requestID) {
		payload, ok := strings.PopString(stringID)
		if !ok {
			return clustererr.NotFound(fmt.Sprintf("received string %s not found", stringID))
		}
		c.table.Resolve(requestID, []byte(payload))
		return nil
	}

	if late != nil {
		payload, _ := strings.PopString(stringID)
		if late.Forward(requestID, []byte(payload)) {
			return nil
		}
	}
	return clustererr.NotFound(fmt.Sprintf("unknown request-id %s", requestID))
}

func splitOnce(s string) (head, rest string, ok bool) {
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}
