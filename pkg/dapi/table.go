package dapi

import "sync"

// pendingEntry holds the completion signal and response slot for one
// in-flight DAPI round-trip (§3: "request-id -> { completion-signal,
// response-payload }").
type pendingEntry struct {
	done     chan struct{}
	once     sync.Once
	response []byte
}

func (e *pendingEntry) resolve(payload []byte) {
	e.once.Do(func() {
		e.response = payload
		close(e.done)
	})
}

// Table is the PendingRequestTable correlator (§3, §9). It deliberately
// holds only the request-id and a completion signal, not a reference to the
// waiting goroutine — the waiter's own timeout reclaims the entry, so a
// worker drop can never leak a blocked coroutine through this table (§9
// design note: "never have the table own coroutines").
type Table struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

// NewTable creates an empty PendingRequestTable.
func NewTable() *Table {
	return &Table{entries: make(map[string]*pendingEntry)}
}

// Insert registers a new request-id and returns its entry. Callers must
// eventually Remove the id (normal completion) or leave it for the GC path
// on timeout (§9: "let the waiter's own timeout GC the slot").
func (t *Table) Insert(requestID string) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := &pendingEntry{done: make(chan struct{})}
	t.entries[requestID] = entry
	return entry
}

// Resolve delivers a response payload to the entry, unblocking its waiter.
// Returns false if no such request-id is pending.
func (t *Table) Resolve(requestID string, payload []byte) bool {
	t.mu.Lock()
	entry, ok := t.entries[requestID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	entry.resolve(payload)
	return true
}

// Remove discards an entry, called by the caller after timeout or success
// (§3: "removed by the caller after timeout or success").
func (t *Table) Remove(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestID)
}

// Count reports how many requests are currently pending, used by
// pkg/metrics' collector for the pending DAPI request gauge.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Has reports whether a request-id is still pending — used by
// process_dapi_res to distinguish a live DAPI round-trip from a late
// response that should instead be forwarded to a local-API client.
func (t *Table) Has(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[requestID]
	return ok
}

// Wait blocks until the entry resolves or done is closed (ctx cancellation,
// or a caller-managed timer), returning the response payload.
func (e *pendingEntry) Wait(cancel <-chan struct{}) ([]byte, bool) {
	select {
	case <-e.done:
		return e.response, true
	case <-cancel:
		return nil, false
	}
}
