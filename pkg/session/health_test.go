package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/types"
	"github.com/wardenhq/warden/pkg/wire"
)

func TestHandleGetNodeReturnsMasterIdentity(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	resp, err := s.handleGetNode(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got nodeInfoResponse
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.Name != srv.cfg.Cluster.NodeName {
		t.Errorf("expected name %s, got %s", srv.cfg.Cluster.NodeName, got.Name)
	}
	if got.NodeType != srv.cfg.Cluster.NodeType {
		t.Errorf("expected node type %s, got %s", srv.cfg.Cluster.NodeType, got.NodeType)
	}
}

func TestHandleGetHealthIncludesRegisteredWorker(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	srv.workers["worker-02"] = types.WorkerInfo{
		Name:     "worker-02",
		NodeType: "worker",
		Version:  srv.cfg.Cluster.Version,
	}

	resp, err := s.handleGetHealth(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc clustersync.HealthDocument
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := doc.Nodes["worker-02"]; !ok {
		t.Errorf("expected worker-02 present in health document, got %+v", doc.Nodes)
	}
	if _, ok := doc.Nodes[srv.cfg.Cluster.NodeName]; !ok {
		t.Errorf("expected master entry present in health document, got %+v", doc.Nodes)
	}
}

func TestHandleGetHealthHonorsFilter(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	srv.workers["worker-02"] = types.WorkerInfo{Name: "worker-02", NodeType: "worker"}
	srv.workers["worker-03"] = types.WorkerInfo{Name: "worker-03", NodeType: "worker"}

	resp, err := s.handleGetHealth(context.Background(), wire.Frame{Data: []byte("worker-02")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc clustersync.HealthDocument
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := doc.Nodes["worker-03"]; ok {
		t.Error("expected worker-03 to be filtered out")
	}
	if _, ok := doc.Nodes["worker-02"]; !ok {
		t.Error("expected worker-02 present")
	}
}
