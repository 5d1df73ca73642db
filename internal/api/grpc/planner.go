// Package grpc exposes split planning to engine schedulers over gRPC. Messages
// are plain structs carried by a JSON codec.
package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/planner"
	"github.com/arkilian/ringsplit/pkg/types"
)

// ServiceName is the fully qualified planner service name.
const ServiceName = "ringsplit.v1.Planner"

const planMethod = "/" + ServiceName + "/Plan"

// PlanRequest asks for the splits of one table under a conjunctive predicate.
type PlanRequest struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Where  string `json:"where,omitempty"`
}

// PlanResponse carries the partition result and the materialized split source.
type PlanResponse struct {
	Kind            string        `json:"kind"`
	Partitions      []string      `json:"partitions"`
	ResidualColumns []string      `json:"residual_columns,omitempty"`
	SourceID        string        `json:"source_id"`
	Splits          []types.Split `json:"splits"`
	RequestID       string        `json:"request_id"`
}

// PlannerService is the server API of the planner service.
type PlannerService interface {
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
}

// PlannerServer implements PlannerService on a split manager.
type PlannerServer struct {
	manager     *planner.SplitManager
	connectorID string
}

// NewPlannerServer creates a new gRPC planner server.
func NewPlannerServer(manager *planner.SplitManager, connectorID string) *PlannerServer {
	return &PlannerServer{manager: manager, connectorID: connectorID}
}

// Plan parses the predicate, prunes and splits the table.
func (s *PlannerServer) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	requestID := extractRequestID(ctx)
	gogrpc.SetHeader(ctx, metadata.Pairs("x-request-id", requestID))

	if req.Schema == "" || req.Table == "" {
		return nil, status.Error(codes.InvalidArgument, "schema and table are required")
	}

	handle := types.NewTableHandle(s.connectorID, req.Schema, req.Table)
	pm, err := s.manager.ParsePredicate(ctx, handle, req.Where)
	if err != nil {
		return nil, statusError(err)
	}
	result, source, err := s.manager.Plan(ctx, handle, pm)
	if err != nil {
		return nil, statusError(err)
	}

	resp := &PlanResponse{
		Kind:            result.Kind.String(),
		Partitions:      result.PartitionIDs(),
		ResidualColumns: result.ResidualColumns(),
		SourceID:        source.ID(),
		Splits:          source.Splits(),
		RequestID:       requestID,
	}
	if resp.Splits == nil {
		resp.Splits = []types.Split{}
	}
	return resp, nil
}

// RegisterPlannerServer registers srv on a gRPC server.
func RegisterPlannerServer(r gogrpc.ServiceRegistrar, srv PlannerService) {
	r.RegisterService(&plannerServiceDesc, srv)
}

var plannerServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerService)(nil),
	Methods: []gogrpc.MethodDesc{
		{MethodName: "Plan", Handler: planHandler},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "ringsplit/planner",
}

func planHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(PlanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerService).Plan(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: planMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlannerService).Plan(ctx, req.(*PlanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PlannerClient calls the planner service.
type PlannerClient struct {
	cc gogrpc.ClientConnInterface
}

// NewPlannerClient creates a client over an established connection.
func NewPlannerClient(cc gogrpc.ClientConnInterface) *PlannerClient {
	return &PlannerClient{cc: cc}
}

// Plan calls Planner/Plan with the JSON codec.
func (c *PlannerClient) Plan(ctx context.Context, req *PlanRequest, opts ...gogrpc.CallOption) (*PlanResponse, error) {
	out := new(PlanResponse)
	opts = append([]gogrpc.CallOption{gogrpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, planMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CodeFor maps a planning error to a gRPC status code, mirroring the HTTP
// mapping: caller errors are InvalidArgument, collaborator failures Unavailable.
func CodeFor(err error) codes.Code {
	var re *rserrors.RingsplitError
	if !errors.As(err, &re) {
		return codes.Internal
	}
	switch {
	case re.Category == rserrors.ErrCategoryValidation:
		return codes.InvalidArgument
	case re.Code == rserrors.CodeTableNotFound:
		return codes.NotFound
	case re.Code == rserrors.CodeTimeout:
		return codes.DeadlineExceeded
	case re.Code == rserrors.CodeCancelled:
		return codes.Canceled
	case re.Category == rserrors.ErrCategoryMetadata, re.Category == rserrors.ErrCategoryTopology:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func statusError(err error) error {
	return status.Error(CodeFor(err), err.Error())
}

// extractRequestID extracts or generates a request ID from the gRPC context.
func extractRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			return ids[0]
		}
	}
	return uuid.New().String()
}
