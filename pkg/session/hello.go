package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wardenhq/warden/pkg/clustererr"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/types"
)

// hello parses "<name> <cluster-name> <node-type> <version>", validates
// against the master's configured cluster name and version, registers the
// worker, initializes the three task-scoped loggers, and ensures the
// per-worker staging directory exists (§4.9).
func (s *WorkerSession) hello(data string) error {
	fields := strings.Fields(data)
	if len(fields) != 4 {
		return clustererr.PayloadDecode(fmt.Sprintf("malformed hello %q", data), nil)
	}

	name, clusterName, nodeType, version := fields[0], fields[1], fields[2], fields[3]
	cfg := s.server.Config()

	if clusterName != cfg.Cluster.Name {
		return &clustererr.ErrClusterNameMismatch{Expected: cfg.Cluster.Name, Got: clusterName}
	}
	if version != cfg.Cluster.Version {
		return &clustererr.ErrVersionMismatch{Expected: cfg.Cluster.Version, Got: version}
	}

	s.name = name
	s.clusterName = clusterName
	s.nodeType = nodeType
	s.version = version
	s.stagingDir = cfg.StagingDir(name)

	s.integrityLog = log.WithTask(name, "Integrity check")
	s.integritySyncLog = log.WithTask(name, "Integrity sync")
	s.agentInfoLog = log.WithTask(name, "Agent-info sync")

	if err := os.MkdirAll(s.stagingDir, cfg.Staging.DirMode); err != nil {
		return clustererr.Infrastructure("create staging directory", err)
	}

	s.server.RegisterWorker(types.WorkerInfo{
		Name:           name,
		ClusterName:    clusterName,
		NodeType:       nodeType,
		Version:        version,
		Endpoint:       s.conn.RemoteAddr(),
		ConnectedSince: time.Now(),
		LastKeepAlive:  types.EpochZero,
	}, s.link)

	s.server.PublishEvent(events.Event{
		Type:    events.EventWorkerHello,
		Message: "worker hello accepted",
		Metadata: map[string]string{
			"worker":    name,
			"node_type": nodeType,
			"version":   version,
		},
	})

	log.WithWorker(name).Info().Str("node_type", nodeType).Str("version", version).Msg("worker hello accepted")
	return nil
}
