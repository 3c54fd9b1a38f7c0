// Package session implements WorkerSession, the per-connection handler for
// one worker link (§2 #6, §4.1-§4.9, §5, §9 of the sync-protocol design).
//
// A WorkerSession owns its SyncSlot, its ReceiveTask map, its three
// per-round status records, and its task-scoped loggers. It routes inbound
// frames through a pkg/wire.Dispatcher to the handlers in this package and
// runs the three sync continuations (integrity, extra-valid, agent-info) as
// goroutines bound to a ReceiveTask. It holds a back-reference to the
// server for lookups only — snapshot reads, worker registration, the DAPI
// correlator — never for ownership of server-wide state.
package session
