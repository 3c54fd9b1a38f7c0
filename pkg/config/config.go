// Package config loads the master's YAML configuration: cluster identity,
// sync intervals/timeouts, per-cluster-item-key file permissions, and the
// staging directory layout (§2.3, §6 config knobs).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the YAML configuration file.
type Config struct {
	Cluster   ClusterConfig         `yaml:"cluster"`
	Intervals IntervalsConfig       `yaml:"intervals"`
	Files     map[string]FileConfig `yaml:"files"`
	Staging   StagingConfig         `yaml:"staging"`
}

// ClusterConfig identifies this node within its cluster. Name is the
// cluster's name (validated against every worker's hello, §4.9); NodeName is
// this master's own node identity, used by get_node/HealthView (§4.8 and
// the supplemented get_node command).
type ClusterConfig struct {
	Name     string `yaml:"name"`
	NodeName string `yaml:"node_name"`
	NodeType string `yaml:"node_type"`
	Version  string `yaml:"version"`
}

// IntervalsConfig groups the master's periodic and per-request timeouts.
type IntervalsConfig struct {
	Master        MasterIntervals        `yaml:"master"`
	Communication CommunicationIntervals `yaml:"communication"`
}

// MasterIntervals controls the SnapshotLoop period (§4.7).
type MasterIntervals struct {
	RecalculateIntegrity time.Duration `yaml:"recalculate_integrity"`
}

// CommunicationIntervals bounds the two wait points named in §5/§6:
// receiving an inbound artifact, and a DAPI round-trip.
type CommunicationIntervals struct {
	TimeoutReceivingFile time.Duration `yaml:"timeout_receiving_file"`
	TimeoutDAPIRequest   time.Duration `yaml:"timeout_dapi_request"`
}

// FileConfig is the per-cluster-item-key sync policy: the permission mode
// applied by safe-move, and whether the key's files are synced as a single
// merged container rather than individually (§5/§6 archive formats).
type FileConfig struct {
	Permissions os.FileMode `yaml:"permissions"`
	Merged      bool        `yaml:"merged"`
	MergeType   string      `yaml:"merge_type"`
}

// StagingConfig controls the per-worker staging area (§6 persisted state
// layout: "<base>/queue/cluster/<worker-name>/").
type StagingConfig struct {
	BaseDir string      `yaml:"base_dir"`
	DirMode os.FileMode `yaml:"dir_mode"`
}

// Default returns the configuration used when no file is supplied, matching
// the values implied by spec.md's own defaults.
func Default() Config {
	return Config{
		Cluster: ClusterConfig{
			Name:     "wardend",
			NodeName: "master",
			NodeType: "master",
			Version:  "dev",
		},
		Intervals: IntervalsConfig{
			Master: MasterIntervals{
				RecalculateIntegrity: 60 * time.Second,
			},
			Communication: CommunicationIntervals{
				TimeoutReceivingFile: 120 * time.Second,
				TimeoutDAPIRequest:   10 * time.Second,
			},
		},
		Staging: StagingConfig{
			BaseDir: "/var/lib/wardend",
			DirMode: 0750,
		},
	}
}

// Load reads and parses a YAML configuration file, filling in defaults for
// any interval left unset. An empty path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Cluster.Name == "" {
		cfg.Cluster.Name = def.Cluster.Name
	}
	if cfg.Cluster.NodeName == "" {
		cfg.Cluster.NodeName = def.Cluster.NodeName
	}
	if cfg.Cluster.NodeType == "" {
		cfg.Cluster.NodeType = def.Cluster.NodeType
	}
	if cfg.Cluster.Version == "" {
		cfg.Cluster.Version = def.Cluster.Version
	}
	if cfg.Intervals.Master.RecalculateIntegrity == 0 {
		cfg.Intervals.Master.RecalculateIntegrity = def.Intervals.Master.RecalculateIntegrity
	}
	if cfg.Intervals.Communication.TimeoutReceivingFile == 0 {
		cfg.Intervals.Communication.TimeoutReceivingFile = def.Intervals.Communication.TimeoutReceivingFile
	}
	if cfg.Intervals.Communication.TimeoutDAPIRequest == 0 {
		cfg.Intervals.Communication.TimeoutDAPIRequest = def.Intervals.Communication.TimeoutDAPIRequest
	}
	if cfg.Staging.BaseDir == "" {
		cfg.Staging.BaseDir = def.Staging.BaseDir
	}
	if cfg.Staging.DirMode == 0 {
		cfg.Staging.DirMode = def.Staging.DirMode
	}
}

// PermissionsFor returns the configured permission mode for a cluster-item-
// key, falling back to a conservative default when the key is unconfigured.
func (c Config) PermissionsFor(clusterItemKey string) os.FileMode {
	if fc, ok := c.Files[clusterItemKey]; ok && fc.Permissions != 0 {
		return fc.Permissions
	}
	return 0640
}

// StagingDir returns the per-worker staging directory path (§6: persisted
// state layout).
func (c Config) StagingDir(workerName string) string {
	return fmt.Sprintf("%s/queue/cluster/%s", c.Staging.BaseDir, workerName)
}
