/*
Package clustersync implements the per-worker synchronization primitives:
the mutual-exclusion slot gate, the generic inbound-artifact handle, the
four-bucket integrity diff, archive packing/unpacking, and the file-apply
routine that lands a worker's extra-valid archive on local disk.

These are the building blocks pkg/session composes into the three sync
coroutines (integrity, extra-valid, agent-info); nothing here owns a network
connection.
*/
package clustersync
