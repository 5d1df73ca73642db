// Package app wires the catalog, the token ring and the split planner into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"

	grpcapi "github.com/arkilian/ringsplit/internal/api/grpc"
	httpapi "github.com/arkilian/ringsplit/internal/api/http"
	"github.com/arkilian/ringsplit/internal/config"
	"github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/observability"
	"github.com/arkilian/ringsplit/internal/planner"
	"github.com/arkilian/ringsplit/internal/server"
	"github.com/arkilian/ringsplit/internal/topology"
)

const (
	statsWindow        = time.Hour
	statsPruneInterval = 5 * time.Minute
)

// App owns the planner and its collaborators.
type App struct {
	cfg *config.Config

	catalog  *metadata.SQLiteCatalog
	ring     *topology.Ring
	stats    *observability.PlanStats
	manager  *planner.SplitManager
	shutdown *server.ShutdownManager

	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New validates cfg and builds the catalog, ring and split manager. The HTTP
// surface is only started by Start.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	a := &App{
		cfg:      cfg,
		stats:    observability.NewPlanStats(statsWindow),
		shutdown: server.NewShutdownManager(server.DefaultShutdownConfig()),
	}

	var err error
	a.catalog, err = metadata.NewCatalog(cfg.Catalog.Path, cfg.ConnectorID, cfg.Planner.LimitForPartitionKeySelect)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	a.shutdown.RegisterCloser(a.catalog)
	log.Printf("Partition catalog initialized: %s", cfg.Catalog.Path)

	hosts, err := cfg.Hosts()
	if err != nil {
		a.catalog.Close()
		return nil, err
	}
	if len(hosts) == 0 {
		hosts = []topology.Host{{Address: "127.0.0.1", Port: cfg.Topology.NativeProtocolPort}}
		log.Printf("No contact points configured, using %s", hosts[0])
	}
	a.ring, err = topology.NewRing(hosts, topology.RingOptions{
		ReplicationFactor: cfg.Topology.ReplicationFactor,
		VNodes:            cfg.Topology.VNodes,
		SplitSize:         cfg.Planner.SplitSize,
		Estimator:         a.catalog,
	})
	if err != nil {
		a.catalog.Close()
		return nil, fmt.Errorf("failed to build token ring: %w", err)
	}
	log.Printf("Token ring initialized: %d hosts, rf=%d, vnodes=%d",
		len(hosts), cfg.Topology.ReplicationFactor, cfg.Topology.VNodes)

	a.manager, err = planner.NewSplitManager(a.catalog, a.ring, planner.Options{
		ConnectorID:  cfg.ConnectorID,
		MaxBatchSize: cfg.Planner.PartitionSizeForBatchSelect,
		Concurrency:  cfg.Planner.Concurrency,
		Timeout:      cfg.Planner.Timeout,
		Resolver:     topology.DefaultResolver{IncludePort: true},
		Logger:       log.Default(),
		Stats:        a.stats,
	})
	if err != nil {
		a.catalog.Close()
		return nil, err
	}

	return a, nil
}

// Manager returns the split manager.
func (a *App) Manager() *planner.SplitManager {
	return a.manager
}

// Catalog returns the partition catalog.
func (a *App) Catalog() *metadata.SQLiteCatalog {
	return a.catalog
}

// Ring returns the token ring.
func (a *App) Ring() *topology.Ring {
	return a.ring
}

// Stats returns the plan statistics.
func (a *App) Stats() *observability.PlanStats {
	return a.stats
}

// LoadFixture registers the tables and partition keys of a YAML fixture file.
func (a *App) LoadFixture(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	if err := metadata.LoadFixture(ctx, a.catalog, f); err != nil {
		return err
	}
	log.Printf("Fixture loaded: %s", path)
	return nil
}

// Handler returns the HTTP surface, rejecting requests once shutdown begins.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(a.manager, a.stats, a.cfg.ConnectorID, server.ShutdownMiddleware(a.shutdown))
}

// Start starts the HTTP server and the statistics pruning loop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("app is already running")
	}
	a.running = true

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterCloser(server.HTTPServerCloser{Server: a.httpServer})

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("Planner HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Planner HTTP server error: %v", err)
		}
	}()

	if a.cfg.GRPC.Enabled {
		if err := a.startGRPC(); err != nil {
			cancel()
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(statsPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.stats.Prune()
			}
		}
	}()

	log.Printf("Ringsplit started (connector %s)", a.cfg.ConnectorID)
	return nil
}

// startGRPC serves the planner service next to the HTTP surface.
func (a *App) startGRPC() error {
	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	a.grpcListener = lis
	a.grpcServer = grpc.NewServer()
	grpcapi.RegisterPlannerServer(a.grpcServer, grpcapi.NewPlannerServer(a.manager, a.cfg.ConnectorID))

	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.grpcServer.GracefulStop()
		return nil
	}))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("Planner gRPC server listening on %s", lis.Addr())
		if err := a.grpcServer.Serve(lis); err != nil {
			log.Printf("Planner gRPC server error: %v", err)
		}
	}()
	return nil
}

// GRPCAddr returns the address the gRPC listener is bound to, or nil when the
// gRPC service is not running.
func (a *App) GRPCAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grpcListener == nil {
		return nil
	}
	return a.grpcListener.Addr()
}

// Stop drains in-flight requests, stops the HTTP server and closes the catalog.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	log.Printf("Ringsplit stopped")
	return err
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
