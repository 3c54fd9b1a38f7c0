package clustersync

import (
	"context"
	"sync"
)

// Artifact is what a ReceiveTask ultimately delivers to its continuation: a
// received filename (integrity/extra-valid archives) or a received string
// (agent-info payload). Err is set instead when the worker reported a sync
// error or the wait timed out.
type Artifact struct {
	Filename string
	String   string
	Err      error
}

// ReceiveTask is the generic "inbound streamed artifact" handle described in
// §3: a pending file or pending string, a completion signal, and a
// continuation bound at construction. It maps the source design's
// suspend-on-signal coroutine onto a one-shot channel plus a context for
// timeout/cancellation (§9 design notes).
type ReceiveTask struct {
	ID           string
	done         chan Artifact
	continuation func(context.Context, Artifact)

	once   sync.Once
	cancel context.CancelFunc
	ctx    context.Context
}

// NewReceiveTask allocates a task bound to a continuation, matching the
// lifecycle in §3: "created by setup_sync_integrity, resolved when the
// artifact is fully received, destroyed when the continuation returns or
// the connection is lost."
func NewReceiveTask(parent context.Context, id string, continuation func(context.Context, Artifact)) *ReceiveTask {
	ctx, cancel := context.WithCancel(parent)
	return &ReceiveTask{
		ID:           id,
		done:         make(chan Artifact, 1),
		continuation: continuation,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Resolve delivers the received artifact exactly once. Subsequent calls are
// no-ops, matching "resolved when the artifact is fully received."
func (t *ReceiveTask) Resolve(a Artifact) {
	t.once.Do(func() {
		t.done <- a
	})
}

// ResolveError resolves the task with an error artifact, the same shape a
// worker-reported sync error (`syn_i_w_m_r`) takes. Expiry of
// timeout_receiving_file does not go through here; Await reports it from
// the task's own context.
func (t *ReceiveTask) ResolveError(err error) {
	t.Resolve(Artifact{Err: err})
}

// Await blocks until the task resolves or the task's own context (the
// parent passed to NewReceiveTask, which carries the caller's timeout) is
// done or Cancel is called, then invokes the bound continuation exactly
// once and returns. ctx is not waited on; it is only handed to the
// continuation. It is meant to be run in its own goroutine, one per sync
// round.
func (t *ReceiveTask) Await(ctx context.Context) {
	select {
	case a := <-t.done:
		t.continuation(ctx, a)
	case <-t.ctx.Done():
		t.continuation(ctx, Artifact{Err: t.ctx.Err()})
	}
}

// Cancel unblocks any pending Await with ctx.Err(), used when the owning
// connection is lost (§5: "the session cancels all ReceiveTasks it owns").
func (t *ReceiveTask) Cancel() {
	t.cancel()
}
