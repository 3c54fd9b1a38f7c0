package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/clustersync"
)

func TestRunSyncAgentInfoHappyPath(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindAgentInfo)

	srv.agentDB.responses["chunk-a"] = agentdb.ChunkResult{Status: "ok"}
	payload := `{"set_data_command":"agent 001 sync-agent-info set","chunks":["chunk-a"]}`

	done := make(chan struct{})
	go func() {
		s.runSyncAgentInfo(context.Background(), clustersync.Artifact{String: payload})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncAgentInfo did not return")
	}

	if !s.slot.Observe(clustersync.KindAgentInfo) {
		t.Error("expected agent-info slot to be reopened")
	}
	if conn.lastSent().Command != "syn_m_a_e" {
		t.Errorf("expected syn_m_a_e, got %s", conn.lastSent().Command)
	}
	if !strings.Contains(string(conn.lastSent().Data), `"updated_chunks":1`) {
		t.Errorf("expected one updated chunk in result, got %s", conn.lastSent().Data)
	}
}

func TestRunSyncAgentInfoChunkError(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindAgentInfo)

	srv.agentDB.responses["chunk-a"] = agentdb.ChunkResult{Status: "error", Detail: "db busy"}
	payload := `{"set_data_command":"agent 001 sync-agent-info set","chunks":["chunk-a"]}`

	done := make(chan struct{})
	go func() {
		s.runSyncAgentInfo(context.Background(), clustersync.Artifact{String: payload})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncAgentInfo did not return")
	}

	if conn.lastSent().Command != "syn_m_a_e" {
		t.Errorf("expected syn_m_a_e even with a chunk error, got %s", conn.lastSent().Command)
	}
	if !strings.Contains(string(conn.lastSent().Data), "db busy") {
		t.Errorf("expected chunk error detail in result, got %s", conn.lastSent().Data)
	}
}

func TestRunSyncAgentInfoMalformedPayload(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindAgentInfo)

	done := make(chan struct{})
	go func() {
		s.runSyncAgentInfo(context.Background(), clustersync.Artifact{String: "not json"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncAgentInfo did not return")
	}

	if !s.slot.Observe(clustersync.KindAgentInfo) {
		t.Error("expected agent-info slot to be reopened even on parse failure")
	}
	if conn.lastSent().Command != "syn_m_a_err" {
		t.Errorf("expected syn_m_a_err, got %s", conn.lastSent().Command)
	}
}

func TestRunSyncAgentInfoArtifactError(t *testing.T) {
	srv := newFakeServer()
	s, conn := newTestSession(t, srv)
	s.slot.TryReserve(clustersync.KindAgentInfo)

	done := make(chan struct{})
	go func() {
		s.runSyncAgentInfo(context.Background(), clustersync.Artifact{Err: context.DeadlineExceeded})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runSyncAgentInfo did not return")
	}

	if conn.lastSent().Command != "syn_m_a_err" {
		t.Errorf("expected syn_m_a_err, got %s", conn.lastSent().Command)
	}
}
