// Package main implements the ringsplit binary. It either serves the planning
// API over HTTP or plans a single query and prints the split source as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/arkilian/ringsplit/internal/app"
	"github.com/arkilian/ringsplit/internal/config"
	"github.com/arkilian/ringsplit/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		envFile     string
		dataDir     string
		fixture     string
		httpAddr    string
		grpcAddr    string
		serve       bool
		schema      string
		table       string
		where       string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the partition catalog")
	flag.StringVar(&fixture, "fixture", "", "YAML fixture of tables and partition keys to register")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the planning API")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC address for the planner service (enables gRPC)")
	flag.BoolVar(&serve, "serve", false, "Serve the planning API instead of planning one query")
	flag.StringVar(&schema, "schema", "", "Schema of the table to plan")
	flag.StringVar(&table, "table", "", "Table to plan")
	flag.StringVar(&where, "where", "", "Conjunctive predicate, e.g. \"id IN (1, 2) AND status = 'open'\"")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Ringsplit - partition and topology aware split planning\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ringsplit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ringsplit --fixture tables.yaml --schema shop --table orders --where \"customer_id = 17\"\n")
		fmt.Fprintf(os.Stderr, "  ringsplit --serve --config /etc/ringsplit/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  ringsplit --serve --grpc-addr :9090\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_CONNECTOR_ID     Connector id stamped on handles and splits\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_DATA_DIR         Base directory for the partition catalog\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_TOPOLOGY_CONTACT_POINTS  Comma separated ring members (host or host:port)\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_HTTP_ADDR        HTTP address for the planning API\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_GRPC_ENABLED     Serve the planner over gRPC as well\n")
		fmt.Fprintf(os.Stderr, "  RINGSPLIT_GRPC_ADDR        gRPC address for the planner service\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("ringsplit version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Fatalf("Failed to load %s: %v", envFile, err)
		}
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr, grpcAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if !serve && (table == "" || schema == "") {
		fmt.Fprintln(os.Stderr, "either --serve or both --schema and --table are required")
		flag.Usage()
		os.Exit(2)
	}

	if serve {
		printBanner(cfg)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if fixture != "" {
		if err := application.LoadFixture(ctx, fixture); err != nil {
			application.Stop(ctx)
			log.Fatalf("Failed to load fixture: %v", err)
		}
	}

	if !serve {
		err := planOnce(ctx, application, cfg.ConnectorID, schema, table, where)
		application.Stop(ctx)
		if err != nil {
			log.Fatalf("Planning failed: %v", err)
		}
		return
	}

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// planOnce plans one query and writes the partition result and split source
// to stdout.
func planOnce(ctx context.Context, application *app.App, connectorID, schema, table, where string) error {
	handle := types.NewTableHandle(connectorID, schema, table)
	manager := application.Manager()

	pm, err := manager.ParsePredicate(ctx, handle, where)
	if err != nil {
		return err
	}
	result, source, err := manager.Plan(ctx, handle, pm)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Kind            string   `json:"kind"`
		Partitions      []string `json:"partitions"`
		ResidualColumns []string `json:"residual_columns,omitempty"`
		Source          any      `json:"source"`
	}{
		Kind:            result.Kind.String(),
		Partitions:      result.PartitionIDs(),
		ResidualColumns: result.ResidualColumns(),
		Source:          source,
	})
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, httpAddr, grpcAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags win
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.Catalog.Path = ""
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Enabled = true
		cfg.GRPC.Addr = grpcAddr
	}

	return cfg, nil
}

func printBanner(cfg *config.Config) {
	log.Printf("RINGSPLIT - split planning for %s", cfg.ConnectorID)
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Data Dir:    %s", cfg.DataDir)
	log.Printf("  Partitioner: %s", cfg.Topology.Partitioner)
	log.Printf("  Ring:        %d contact points, rf=%d, vnodes=%d",
		len(cfg.Topology.ContactPoints), cfg.Topology.ReplicationFactor, cfg.Topology.VNodes)
	log.Printf("  Batch Size:  %d", cfg.Planner.PartitionSizeForBatchSelect)
	log.Printf("  HTTP:        %s", cfg.HTTP.Addr)
	if cfg.GRPC.Enabled {
		log.Printf("  gRPC:        %s", cfg.GRPC.Addr)
	}
	log.Printf("")
}
