package clustersync

import "sync"

// SyncSlot is the per-session mutual-exclusion gate described in §3/§5:
// integrity and extra-valid share one slot (they never run concurrently for
// the same worker), agent-info uses an independent slot. A single-threaded
// cooperative scheduler would need no lock at all, but WorkerSession
// handlers run as goroutines reading off one connection, so the slot still
// guards its two booleans with a mutex.
type SyncSlot struct {
	mu                  sync.Mutex
	integrityFree       bool
	agentInfoFree       bool
	extraValidRequested bool
}

// NewSyncSlot returns a slot with both gates open.
func NewSyncSlot() *SyncSlot {
	return &SyncSlot{integrityFree: true, agentInfoFree: true}
}

// Kind selects which gate an operation reserves/releases.
type Kind int

const (
	KindIntegrity Kind = iota
	KindAgentInfo
)

// TryReserve atomically checks and closes a gate, returning false if it was
// already closed. Integrity and extra-valid both reserve KindIntegrity;
// `syn_i_w_m_p` (probe) does not reserve anything, it only calls Observe.
func (s *SyncSlot) TryReserve(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindIntegrity:
		if !s.integrityFree {
			return false
		}
		s.integrityFree = false
		return true
	case KindAgentInfo:
		if !s.agentInfoFree {
			return false
		}
		s.agentInfoFree = false
		return true
	default:
		return false
	}
}

// Release reopens a gate. Releasing KindIntegrity also clears
// extra-valid-requested, since an integrity-sharing round always ends the
// span that flag describes (§3 invariant).
func (s *SyncSlot) Release(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindIntegrity:
		s.integrityFree = true
		s.extraValidRequested = false
	case KindAgentInfo:
		s.agentInfoFree = true
	}
}

// Observe returns the current value of a gate without reserving it — the
// behavior behind the `syn_i_w_m_p`/`syn_a_w_m_p` permission probes.
func (s *SyncSlot) Observe(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindIntegrity:
		return s.integrityFree
	case KindAgentInfo:
		return s.agentInfoFree
	default:
		return false
	}
}

// SetExtraValidRequested records whether the most recent integrity round
// found a non-empty extra-valid bucket. Only meaningful while the integrity
// gate is closed (§3: "extra-valid-requested may only be true while
// integrity-free = false").
func (s *SyncSlot) SetExtraValidRequested(requested bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraValidRequested = requested
}

// ExtraValidRequested reports whether an extra-valid follow-up round is
// expected before the integrity gate reopens.
func (s *SyncSlot) ExtraValidRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extraValidRequested
}
