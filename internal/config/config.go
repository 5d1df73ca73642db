// Package config provides configuration for the ringsplit planner and its HTTP surface.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/topology"
)

// PartitionerMurmur3 is the only supported partitioner.
const PartitionerMurmur3 = "Murmur3Partitioner"

// Config holds the configuration of the planner binary.
type Config struct {
	// ConnectorID is the connector whose table handles the planner accepts
	ConnectorID string `json:"connector_id" yaml:"connector_id"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Planner configuration
	Planner PlannerConfig `json:"planner" yaml:"planner"`

	// Topology configuration
	Topology TopologyConfig `json:"topology" yaml:"topology"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// GRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`
}

// PlannerConfig holds split planning configuration.
type PlannerConfig struct {
	// PartitionSizeForBatchSelect is the maximum number of keys merged into one IN list
	PartitionSizeForBatchSelect int `json:"partition_size_for_batch_select" yaml:"partition_size_for_batch_select"`

	// LimitForPartitionKeySelect caps partial-prefix key lookups; above it the table is scanned
	LimitForPartitionKeySelect int `json:"limit_for_partition_key_select" yaml:"limit_for_partition_key_select"`

	// SplitSize is the estimated number of partitions per token sub-range
	SplitSize int `json:"split_size" yaml:"split_size"`

	// Concurrency bounds parallel replica lookups
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Timeout bounds one planning call
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// TopologyConfig describes the token ring.
type TopologyConfig struct {
	// Partitioner must be Murmur3Partitioner
	Partitioner string `json:"partitioner" yaml:"partitioner"`

	// ContactPoints are the ring members as host or host:port
	ContactPoints []string `json:"contact_points" yaml:"contact_points"`

	// NativeProtocolPort is used for contact points without a port
	NativeProtocolPort int `json:"native_protocol_port" yaml:"native_protocol_port"`

	// ReplicationFactor is the SimpleStrategy replication factor
	ReplicationFactor int `json:"replication_factor" yaml:"replication_factor"`

	// VNodes is the number of tokens per host
	VNodes int `json:"vnodes" yaml:"vnodes"`
}

// CatalogConfig holds the partition catalog configuration.
type CatalogConfig struct {
	// Path is the SQLite catalog file; defaults to <data_dir>/catalog.db
	Path string `json:"path" yaml:"path"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds the gRPC planner service configuration.
type GRPCConfig struct {
	// Enabled starts the gRPC listener next to the HTTP one
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the gRPC listen address
	Addr string `json:"addr" yaml:"addr"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		ConnectorID: "cassandra",
		DataDir:     "./data/ringsplit",
		Planner: PlannerConfig{
			PartitionSizeForBatchSelect: 100,
			LimitForPartitionKeySelect:  200,
			SplitSize:                   1024,
			Concurrency:                 16,
			Timeout:                     30 * time.Second,
		},
		Topology: TopologyConfig{
			Partitioner:        PartitionerMurmur3,
			ContactPoints:      []string{},
			NativeProtocolPort: 9042,
			ReplicationFactor:  3,
			VNodes:             16,
		},
		HTTP: HTTPConfig{
			Addr:         ":8090",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/ringsplit"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var problems []string
	if c.ConnectorID == "" {
		problems = append(problems, "connector_id is required")
	}
	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	if c.Planner.PartitionSizeForBatchSelect <= 0 {
		problems = append(problems, fmt.Sprintf("planner.partition_size_for_batch_select must be positive, got %d", c.Planner.PartitionSizeForBatchSelect))
	}
	if c.Planner.LimitForPartitionKeySelect < 0 {
		problems = append(problems, fmt.Sprintf("planner.limit_for_partition_key_select must not be negative, got %d", c.Planner.LimitForPartitionKeySelect))
	}
	if c.Planner.SplitSize < 0 {
		problems = append(problems, fmt.Sprintf("planner.split_size must not be negative, got %d", c.Planner.SplitSize))
	}
	if c.Planner.Concurrency <= 0 {
		problems = append(problems, fmt.Sprintf("planner.concurrency must be positive, got %d", c.Planner.Concurrency))
	}
	if c.Planner.Timeout < 0 {
		problems = append(problems, "planner.timeout must not be negative")
	}
	if c.Topology.Partitioner != PartitionerMurmur3 {
		problems = append(problems, fmt.Sprintf("topology.partitioner %q is not supported (must be %s)", c.Topology.Partitioner, PartitionerMurmur3))
	}
	if c.Topology.ReplicationFactor <= 0 {
		problems = append(problems, fmt.Sprintf("topology.replication_factor must be positive, got %d", c.Topology.ReplicationFactor))
	}
	if c.Topology.VNodes <= 0 {
		problems = append(problems, fmt.Sprintf("topology.vnodes must be positive, got %d", c.Topology.VNodes))
	}
	if c.Topology.NativeProtocolPort <= 0 || c.Topology.NativeProtocolPort > 65535 {
		problems = append(problems, fmt.Sprintf("topology.native_protocol_port out of range: %d", c.Topology.NativeProtocolPort))
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		problems = append(problems, "grpc.addr is required when grpc is enabled")
	}
	if _, err := c.Hosts(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return rserrors.NewValidationError(rserrors.CodeInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Hosts parses the contact points into ring hosts. Contact points without a
// port use the native protocol port.
func (c *Config) Hosts() ([]topology.Host, error) {
	hosts := make([]topology.Host, 0, len(c.Topology.ContactPoints))
	for _, cp := range c.Topology.ContactPoints {
		host, portText, err := splitHostPort(cp)
		if err != nil {
			return nil, err
		}
		port := c.Topology.NativeProtocolPort
		if portText != "" {
			port, err = strconv.Atoi(portText)
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("topology.contact_points: invalid port in %q", cp)
			}
		}
		hosts = append(hosts, topology.Host{Address: host, Port: port})
	}
	return hosts, nil
}

func splitHostPort(s string) (host, port string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("topology.contact_points: empty contact point")
	}
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", "", fmt.Errorf("topology.contact_points: malformed address %q", s)
		}
		host = s[1:end]
		if rest := s[end+1:]; rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return "", "", fmt.Errorf("topology.contact_points: malformed address %q", s)
			}
			port = rest[1:]
		}
		return host, port, nil
	}
	if strings.Count(s, ":") == 1 {
		i := strings.IndexByte(s, ':')
		return s[:i], s[i+1:], nil
	}
	return s, "", nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the RINGSPLIT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RINGSPLIT_CONNECTOR_ID"); v != "" {
		cfg.ConnectorID = v
	}
	if v := os.Getenv("RINGSPLIT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Planner configuration
	if v := os.Getenv("RINGSPLIT_PLANNER_PARTITION_SIZE_FOR_BATCH_SELECT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Planner.PartitionSizeForBatchSelect)
	}
	if v := os.Getenv("RINGSPLIT_PLANNER_LIMIT_FOR_PARTITION_KEY_SELECT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Planner.LimitForPartitionKeySelect)
	}
	if v := os.Getenv("RINGSPLIT_PLANNER_SPLIT_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Planner.SplitSize)
	}
	if v := os.Getenv("RINGSPLIT_PLANNER_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Planner.Concurrency)
	}
	if v := os.Getenv("RINGSPLIT_PLANNER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Planner.Timeout = d
		}
	}

	// Topology configuration
	if v := os.Getenv("RINGSPLIT_TOPOLOGY_PARTITIONER"); v != "" {
		cfg.Topology.Partitioner = v
	}
	if v := os.Getenv("RINGSPLIT_TOPOLOGY_CONTACT_POINTS"); v != "" {
		var points []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				points = append(points, p)
			}
		}
		cfg.Topology.ContactPoints = points
	}
	if v := os.Getenv("RINGSPLIT_TOPOLOGY_NATIVE_PROTOCOL_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Topology.NativeProtocolPort)
	}
	if v := os.Getenv("RINGSPLIT_TOPOLOGY_REPLICATION_FACTOR"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Topology.ReplicationFactor)
	}
	if v := os.Getenv("RINGSPLIT_TOPOLOGY_VNODES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Topology.VNodes)
	}

	// Catalog and HTTP configuration
	if v := os.Getenv("RINGSPLIT_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("RINGSPLIT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("RINGSPLIT_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RINGSPLIT_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
}

// EnsureDirectories creates the data directory and the catalog's parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Catalog.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Catalog.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
