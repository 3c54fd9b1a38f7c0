/*
Package metrics provides Prometheus metrics collection and exposition for the
cluster master.

All metrics are registered at package init against the default Prometheus
registry and exposed through Handler() for mounting on an HTTP mux. The Timer
helper times a sync round or request and records it to a histogram in one line:

	timer := metrics.NewTimer()
	// ... run the round ...
	timer.ObserveDurationVec(metrics.IntegritySyncDuration, outcome)

Collector polls a MasterView (satisfied by pkg/master.Server) on an interval
and republishes point-in-time gauges (worker count, snapshot file count,
pending DAPI requests) that the rest of the code has no natural place to push
from directly.
*/
package metrics
