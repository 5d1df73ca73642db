package grpc

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	rsmetadata "github.com/arkilian/ringsplit/internal/metadata"
	"github.com/arkilian/ringsplit/internal/planner"
	"github.com/arkilian/ringsplit/internal/topology"
	"github.com/arkilian/ringsplit/pkg/types"
)

const connector = "cassandra"

type estimatorFunc func(ctx context.Context) (uint64, error)

func (f estimatorFunc) EstimatePartitions(ctx context.Context, _, _ string) (uint64, error) {
	return f(ctx)
}

func newTestClient(t *testing.T, estimator topology.Estimator) *PlannerClient {
	t.Helper()
	ctx := context.Background()

	tmpFile, err := os.CreateTemp("", "grpc_test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	catalog, err := rsmetadata.NewCatalog(tmpFile.Name(), connector, 0)
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })

	require.NoError(t, catalog.RegisterTable(ctx, "shop", "customers", []types.Column{
		{Name: "a", Type: types.TypeLong, PartitionKey: true},
		{Name: "user_id", Type: types.TypeOther, Indexed: true},
	}))
	for _, v := range []int64{5, 6} {
		_, err := catalog.RegisterPartition(ctx, "shop", "customers", []any{v})
		require.NoError(t, err)
	}

	opts := topology.RingOptions{ReplicationFactor: 1, VNodes: 2}
	if estimator != nil {
		opts.SplitSize = 10
		opts.Estimator = estimator
	}
	ring, err := topology.NewRing([]topology.Host{{Address: "10.0.0.1", Port: 9042}}, opts)
	require.NoError(t, err)

	manager, err := planner.NewSplitManager(catalog, ring, planner.Options{ConnectorID: connector})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := gogrpc.NewServer()
	RegisterPlannerServer(srv, NewPlannerServer(manager, connector))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := gogrpc.NewClient("passthrough:///bufnet",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewPlannerClient(conn)
}

func TestPlan_BatchedPartition(t *testing.T) {
	client := newTestClient(t, nil)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "req-42")
	var header metadata.MD
	resp, err := client.Plan(ctx, &PlanRequest{Schema: "shop", Table: "customers", Where: "a = 5"}, gogrpc.Header(&header))
	require.NoError(t, err)

	assert.Equal(t, "PRUNED", resp.Kind)
	assert.Equal(t, []string{"a = 5"}, resp.Partitions)
	require.Len(t, resp.Splits, 1)
	assert.Equal(t, "a IN (5)", resp.Splits[0].Condition)
	assert.NotEmpty(t, resp.SourceID)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, []string{"req-42"}, header.Get("x-request-id"))
}

func TestPlan_IndexPushdown(t *testing.T) {
	client := newTestClient(t, nil)

	resp, err := client.Plan(context.Background(), &PlanRequest{
		Schema: "shop", Table: "customers", Where: "user_id = '123e4567-e89b-12d3-a456-426614174000'",
	})
	require.NoError(t, err)

	assert.Equal(t, "INDEX_PUSHED_DOWN", resp.Kind)
	assert.Equal(t, []string{"user_id = 123e4567-e89b-12d3-a456-426614174000"}, resp.Partitions)
	assert.NotEmpty(t, resp.Splits)
	assert.NotEmpty(t, resp.RequestID)
}

func TestPlan_ErrorCodes(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	_, err := client.Plan(ctx, &PlanRequest{Schema: "shop"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Plan(ctx, &PlanRequest{Schema: "shop", Table: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Plan(ctx, &PlanRequest{Schema: "shop", Table: "customers", Where: "nope = 1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPlan_TopologyFailureUnavailable(t *testing.T) {
	client := newTestClient(t, estimatorFunc(func(context.Context) (uint64, error) {
		return 0, errors.New("estimator down")
	}))

	_, err := client.Plan(context.Background(), &PlanRequest{Schema: "shop", Table: "customers"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), rserrors.CodeTokenRangeFailed)
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{rserrors.NewValidationError(rserrors.CodeNilArgument, "nil"), codes.InvalidArgument},
		{rserrors.NewMetadataError(rserrors.CodeTableNotFound, "gone", nil), codes.NotFound},
		{rserrors.NewMetadataError(rserrors.CodeMetadataFetchFailed, "io", nil), codes.Unavailable},
		{rserrors.NewTopologyError(rserrors.CodeReplicaLookupFailed, "io", nil), codes.Unavailable},
		{rserrors.FromContext("plan", context.DeadlineExceeded), codes.DeadlineExceeded},
		{rserrors.FromContext("plan", context.Canceled), codes.Canceled},
		{rserrors.NewInternalError("bug", nil), codes.Internal},
		{errors.New("plain"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeFor(tt.err), "%v", tt.err)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := jsonCodec{}
	data, err := codec.Marshal(&PlanRequest{Schema: "s", Table: "t", Where: "a = 1"})
	require.NoError(t, err)

	var got PlanRequest
	require.NoError(t, codec.Unmarshal(data, &got))
	assert.Equal(t, PlanRequest{Schema: "s", Table: "t", Where: "a = 1"}, got)
	assert.Equal(t, "json", codec.Name())
}
