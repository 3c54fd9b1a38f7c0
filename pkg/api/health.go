package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wardenhq/warden/pkg/metrics"
)

// HealthProvider is the subset of the master server's state the ops HTTP
// server needs to answer /healthz and /ready. pkg/master.Server implements
// this; tests substitute a stub.
type HealthProvider interface {
	// HealthDocument assembles the per-worker + master health view described
	// by the cluster-sync status reporting contract. The returned value must
	// be JSON-marshalable as-is.
	HealthDocument() interface{}

	// Ready reports whether the master has completed startup (snapshot
	// loop running, listener bound) and can accept worker connections.
	Ready() (bool, string)
}

// HealthServer provides HTTP endpoints for cluster health and Prometheus
// scraping. It does not itself participate in the cluster wire protocol.
type HealthServer struct {
	provider HealthProvider
	version  string
	mux      *http.ServeMux
}

// NewHealthServer creates a new ops HTTP server backed by the given provider.
func NewHealthServer(provider HealthProvider, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		provider: provider,
		version:  version,
		mux:      mux,
	}

	mux.HandleFunc("/healthz", hs.healthzHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the ops HTTP server and blocks until it exits.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// GetHandler returns the HTTP handler for embedding in another server.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

// readyResponse represents the readiness check response
type readyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthzHandler serves the cluster-wide health document (§4.8): one entry
// per connected worker plus the master's own status block.
func (hs *HealthServer) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(hs.provider.HealthDocument())
}

// readyHandler implements the /ready endpoint.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ready, message := hs.provider.Ready()

	status := http.StatusOK
	statusText := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusText = "not ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResponse{Status: statusText, Message: message})
}
