/*
Package health tracks keepalive staleness for worker connections.

The master updates a worker's Status whenever a call from that worker's
session reaches it (the protocol has no dedicated keepalive frame); the
master's stale-worker loop calls Check every 30 seconds to decide whether a
worker has gone silent long enough to be reported stale. Update implements
hysteresis: a connection is marked unhealthy only after Retries consecutive
missed keepalives, and a single success clears the streak.

This is the only liveness signal the master has for a worker — there is no
HTTP or TCP endpoint to probe, since the worker only ever reaches the master
over the already-open cluster connection.
*/
package health
