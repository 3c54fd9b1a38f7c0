// Package types defines the data model shared by the cluster-sync packages:
// worker registration records, per-session sync-status records, the master
// snapshot, and the wire payloads for the agent-info exchange.
//
// Nothing in this package holds behavior; the state machines that consume
// these types live in pkg/clustersync, pkg/session and pkg/master.
package types
