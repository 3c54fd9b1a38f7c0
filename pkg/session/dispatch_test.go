package session

import (
	"context"
	"testing"

	"github.com/wardenhq/warden/pkg/clustersync"
	"github.com/wardenhq/warden/pkg/wire"
)

func TestIntegrityProbeGatesOnAlreadyExecuted(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	first, err := s.handleIntegrityProbe(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first.Data) != "True" {
		t.Errorf("expected True on first probe of a cycle, got %q", first.Data)
	}

	second, err := s.handleIntegrityProbe(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(second.Data) != "False" {
		t.Errorf("expected False on second probe of the same cycle, got %q", second.Data)
	}
}

func TestIntegrityProbeReflectsClosedSlot(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	s.slot.TryReserve(clustersync.KindIntegrity)

	resp, err := s.handleIntegrityProbe(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Data) != "False" {
		t.Errorf("expected False while integrity slot is closed, got %q", resp.Data)
	}
}

func TestAgentInfoProbeHasNoAlreadyExecutedGate(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	for i := 0; i < 3; i++ {
		resp, err := s.handleAgentInfoProbe(context.Background(), wire.Frame{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Data) != "True" {
			t.Errorf("iteration %d: expected True, got %q", i, resp.Data)
		}
	}
}

func TestBeginIntegrityReservesSlotOnce(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	resp, err := s.handleBeginIntegrity(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Data) == "" {
		t.Error("expected a task id in the response payload")
	}

	if _, err := s.handleBeginIntegrity(context.Background(), wire.Frame{}); err == nil {
		t.Fatal("expected second begin-integrity to fail while the slot is closed")
	}
}

func TestBeginExtraValidRequiresOpenIntegrityRound(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	if _, err := s.handleBeginExtraValid(context.Background(), wire.Frame{}); err == nil {
		t.Fatal("expected error starting extra-valid without an open integrity round")
	}

	if _, err := s.handleBeginIntegrity(context.Background(), wire.Frame{}); err != nil {
		t.Fatalf("unexpected error starting integrity: %v", err)
	}

	if _, err := s.handleBeginExtraValid(context.Background(), wire.Frame{}); err != nil {
		t.Errorf("expected extra-valid begin to succeed once integrity is open: %v", err)
	}
}

func TestBeginAgentInfoResolvesInline(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	// Hold the fake database so the inline round stays in flight, and the
	// slot closed, until the second begin has been checked.
	srv.agentDB.mu.Lock()
	defer srv.agentDB.mu.Unlock()

	payload := `{"set_data_command":"agent 001 sync-agent-info set","chunks":["a"]}`
	resp, err := s.handleBeginAgentInfo(context.Background(), wire.Frame{Data: []byte(payload)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Data) == "" {
		t.Error("expected a task id in the response payload")
	}

	if _, err := s.handleBeginAgentInfo(context.Background(), wire.Frame{Data: []byte(payload)}); err == nil {
		t.Fatal("expected second begin-agent-info to fail while the slot is closed")
	}
}

func TestEndReceiveRejectsMalformedPayload(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	if _, err := s.handleEndIntegrity(context.Background(), wire.Frame{Data: []byte("no-space")}); err == nil {
		t.Fatal("expected error for malformed end-receive payload")
	}
}

func TestEndReceiveUnknownTaskID(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	if _, err := s.handleEndIntegrity(context.Background(), wire.Frame{Data: []byte("bogus-task archive.tar.gz")}); err == nil {
		t.Fatal("expected error for unknown task id")
	}
}

func TestIntegrityErrorResolvesTaskWithError(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	beginResp, err := s.handleBeginIntegrity(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error beginning integrity: %v", err)
	}
	taskID := string(beginResp.Data)

	if _, err := s.handleIntegrityError(context.Background(), wire.Frame{Data: []byte(taskID + " disk full")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to be reopened after handleIntegrityError")
	}
}

// TestIntegrityErrorReleasesSlotWithoutPendingTask covers the stranded-gate
// bug: once the integrity task has already resolved (round parked waiting on
// extra-valid), resolveTask returns not-found for a second resolution
// attempt, but the slot must still reopen.
func TestIntegrityErrorReleasesSlotWithoutPendingTask(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	beginResp, err := s.handleBeginIntegrity(context.Background(), wire.Frame{})
	if err != nil {
		t.Fatalf("unexpected error beginning integrity: %v", err)
	}
	taskID := string(beginResp.Data)

	if err := s.resolveTask(taskID, clustersync.Artifact{Filename: "archive.tar.gz"}); err != nil {
		t.Fatalf("unexpected error resolving task: %v", err)
	}

	if _, err := s.handleIntegrityError(context.Background(), wire.Frame{Data: []byte(taskID + " disk full")}); err == nil {
		t.Fatal("expected error resolving an already-resolved task")
	}

	if !s.slot.Observe(clustersync.KindIntegrity) {
		t.Error("expected integrity slot to be reopened even though the task was already resolved")
	}
}

func TestHandleSendSyncEnqueues(t *testing.T) {
	srv := newFakeServer()
	s, _ := newTestSession(t, srv)

	if _, err := s.handleSendSync(context.Background(), wire.Frame{Data: []byte("payload")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(srv.sendSync) != 1 || srv.sendSync[0].worker != s.name {
		t.Errorf("expected one queued sendsync entry for %s, got %+v", s.name, srv.sendSync)
	}
}
