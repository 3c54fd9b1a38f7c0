package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/wardenhq/warden/pkg/wire"
)

// handleGetHealth and handleGetNodes both answer with the same health
// projection (§4.1, §4.8). Payload, if non-empty, is a space-separated node
// name filter; empty means all nodes.
func (s *WorkerSession) handleGetHealth(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	return s.serveHealthView(f)
}

func (s *WorkerSession) handleGetNodes(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	return s.serveHealthView(f)
}

func (s *WorkerSession) serveHealthView(f wire.Frame) (wire.Frame, error) {
	var filter []string
	if raw := strings.TrimSpace(string(f.Data)); raw != "" {
		filter = strings.Fields(raw)
	}

	doc := s.server.HealthView(filter)
	data, err := json.Marshal(doc)
	if err != nil {
		return wire.Frame{}, err
	}
	return okFrame(string(data)), nil
}

// nodeInfoResponse is the get_node payload shape (§4 supplemented
// features): the master's own basic identity, with no status projection.
type nodeInfoResponse struct {
	Name     string `json:"name"`
	NodeType string `json:"node_type"`
	Version  string `json:"version"`
}

// handleGetNode answers `get_node`, a feature supplemented from
// original_source/master.py not in the distilled spec's command table: a
// worker can identify which master it is talking to without a full health
// query.
func (s *WorkerSession) handleGetNode(ctx context.Context, f wire.Frame) (wire.Frame, error) {
	cfg := s.server.Config()
	data, err := json.Marshal(nodeInfoResponse{
		Name:     cfg.Cluster.NodeName,
		NodeType: cfg.Cluster.NodeType,
		Version:  cfg.Cluster.Version,
	})
	if err != nil {
		return wire.Frame{}, err
	}
	return okFrame(string(data)), nil
}
