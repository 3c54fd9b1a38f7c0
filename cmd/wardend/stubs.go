package main

import (
	"fmt"
	"sync"

	"github.com/wardenhq/warden/pkg/agentdb"
	"github.com/wardenhq/warden/pkg/types"
)

// The local-API server, the agent-info database, and the merge-file wire
// format are external collaborators (§1 Non-goals: "a pre-existing framed
// message channel", "the concrete database and its wire protocol to
// wazuh-db are out of scope"). A real deployment links a wazuh-db client and
// the local API server's own client registry in here instead of these
// stand-ins; they exist so wardend can be run standalone.

// noopAgentDB answers every query with the zero value. A real binary
// replaces this with a client dialing wazuh-db over its own socket
// protocol.
type noopAgentDB struct{}

func (noopAgentDB) SendChunk(command, chunk string) (agentdb.ChunkResult, error) {
	return agentdb.ChunkResult{Status: "ok"}, nil
}

func (noopAgentDB) ActiveAgentCount(nodeName string) (int, error) { return 0, nil }

func (noopAgentDB) AgentExists(agentID string) bool { return true }

// memoryLocalAPI is an in-process local-API client registry: nothing is
// actually listening on the other end, so Forward/ForwardError always
// report no connected client. A real binary replaces this with the local
// API server's own registry.
type memoryLocalAPI struct {
	mu sync.Mutex
}

func (l *memoryLocalAPI) Forward(clientName string, payload []byte) bool      { return false }
func (l *memoryLocalAPI) ForwardError(clientName string, payload []byte) bool { return false }

// tarUnmerger and tarMerger stand in for the merged-file wire format: the
// original wazuh-db merged-container layout is outside this pack's
// retrieval set (§1 Non-goals), so pkg/clustersync stays agnostic of the
// real one and cmd/wardend supplies whichever format both ends of a
// deployment agree on.
func tarMerger(mergeType, sourceDir, mergeName string) ([]byte, error) {
	return []byte(fmt.Sprintf("merge-type:%s dir:%s name:%s", mergeType, sourceDir, mergeName)), nil
}

func tarUnmerger(mergeType, stagingDir, mergeName string) ([]types.MergedMember, error) {
	return nil, nil
}
