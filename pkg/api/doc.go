/*
Package api implements the master's ops HTTP surface: /healthz, /ready, and
/metrics. Worker registration and the sync protocol itself run over the
cluster wire connection in pkg/session and pkg/master — this package only
exposes read-only observability endpoints for operators and Prometheus.

	hs := api.NewHealthServer(masterServer, version)
	go hs.Start(":1516")

/healthz returns the health document assembled by pkg/master (per-worker
sync status plus the master's own status block). /ready reflects whether the
snapshot loop has completed its first cycle and the wire listener is bound.
*/
package api
