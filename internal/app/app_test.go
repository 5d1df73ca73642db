package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "github.com/arkilian/ringsplit/internal/api/grpc"
	"github.com/arkilian/ringsplit/internal/config"
	"github.com/arkilian/ringsplit/pkg/types"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const fixture = `
tables:
  - schema: shop
    table: customers
    columns:
      - {name: id, type: long, partition_key: true}
      - {name: email, type: string, indexed: true}
    partitions:
      - [5]
      - [6]
`

func newTestApp(t *testing.T, opts ...func(*config.Config)) *App {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Topology.ContactPoints = []string{"10.0.0.1", "10.0.0.2"}
	cfg.Topology.ReplicationFactor = 2
	for _, opt := range opts {
		opt(cfg)
	}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Stop(context.Background()) })

	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0644))
	require.NoError(t, a.LoadFixture(context.Background(), path))
	return a
}

func TestApp_PlansFromFixture(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	handle := types.NewTableHandle("cassandra", "shop", "customers")

	pm, err := a.Manager().ParsePredicate(ctx, handle, "id IN (5, 6)")
	require.NoError(t, err)
	result, source, err := a.Manager().Plan(ctx, handle, pm)
	require.NoError(t, err)

	// a multi-valued key domain cannot be used as a prefix
	assert.Equal(t, "UNPARTITIONED", result.Kind.String())
	assert.False(t, source.IsEmpty())
	for s := range source.All() {
		assert.True(t, strings.HasPrefix(s.Condition, "token(id) > "))
		assert.Len(t, s.Addresses, 2)
		assert.Equal(t, 9042, s.Addresses[0].Port)
	}

	pm, err = a.Manager().ParsePredicate(ctx, handle, "id = 6")
	require.NoError(t, err)
	_, source, err = a.Manager().Plan(ctx, handle, pm)
	require.NoError(t, err)
	require.Equal(t, 1, source.Len())
	assert.Equal(t, "id IN (6)", source.Splits()[0].Condition)

	assert.Equal(t, int64(2), a.Stats().Snapshot().Plans)
}

func TestApp_Handler(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	req := httptest.NewRequest(http.MethodPost, "/v1/splits",
		strings.NewReader(`{"schema":"shop","table":"customers","where":"email = 'a@b'"}`))
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"kind":"INDEX_PUSHED_DOWN"`)
	assert.Contains(t, rec.Body.String(), `email = 'a@b'`)
}

func TestApp_StartStop(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Start(context.Background()), "second start must fail")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/splits", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApp_GRPCPlanner(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) {
		cfg.GRPC.Enabled = true
		cfg.GRPC.Addr = "127.0.0.1:0"
	})
	assert.Nil(t, a.GRPCAddr(), "no listener before Start")
	require.NoError(t, a.Start(context.Background()))

	conn, err := grpc.NewClient(a.GRPCAddr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := grpcapi.NewPlannerClient(conn).Plan(ctx, &grpcapi.PlanRequest{Schema: "shop", Table: "customers", Where: "id = 5"})
	require.NoError(t, err)
	assert.Equal(t, "PRUNED", resp.Kind)
	require.Len(t, resp.Splits, 1)
	assert.Equal(t, "id IN (5)", resp.Splits[0].Condition)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Topology.Partitioner = "ByteOrderedPartitioner"
	_, err := New(cfg)
	assert.Error(t, err)
}
