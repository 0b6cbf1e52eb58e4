// ABOUTME: Wire contract of the StandardStore gRPC service
// ABOUTME: Messages are protobuf well-known types, so no generated code is needed

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "standardstore.v1.StandardStore"

const (
	methodGetStandard           = "/" + ServiceName + "/GetStandard"
	methodFindRelevantStandards = "/" + ServiceName + "/FindRelevantStandards"
	methodGetIndexStats         = "/" + ServiceName + "/GetIndexStats"
	methodProcessSet            = "/" + ServiceName + "/ProcessSet"
)

// StandardStoreServer is the server API of the StandardStore service.
type StandardStoreServer interface {
	GetStandard(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	FindRelevantStandards(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetIndexStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ProcessSet(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterStandardStoreServer registers srv on s.
func RegisterStandardStoreServer(s grpc.ServiceRegistrar, srv StandardStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the StandardStore service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StandardStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStandard", Handler: getStandardHandler},
		{MethodName: "FindRelevantStandards", Handler: findRelevantStandardsHandler},
		{MethodName: "GetIndexStats", Handler: getIndexStatsHandler},
		{MethodName: "ProcessSet", Handler: processSetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "standardstore/v1/standardstore.proto",
}

func getStandardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StandardStoreServer).GetStandard(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStandard}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StandardStoreServer).GetStandard(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func findRelevantStandardsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StandardStoreServer).FindRelevantStandards(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFindRelevantStandards}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StandardStoreServer).FindRelevantStandards(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getIndexStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StandardStoreServer).GetIndexStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetIndexStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StandardStoreServer).GetIndexStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func processSetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StandardStoreServer).ProcessSet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodProcessSet}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StandardStoreServer).ProcessSet(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a thin typed client for the StandardStore service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetStandard fetches one standard by id.
func (c *Client) GetStandard(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStandard, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRelevantStandards searches standards for an activity. Zero maxResults
// and empty grade use the server defaults.
func (c *Client) FindRelevantStandards(ctx context.Context, activity string, maxResults int, grade string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	fields := map[string]any{"activity": activity}
	if maxResults > 0 {
		fields["max_results"] = maxResults
	}
	if grade != "" {
		fields["grade"] = grade
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodFindRelevantStandards, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIndexStats returns index statistics.
func (c *Client) GetIndexStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetIndexStats, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessSet processes a downloaded standard set on the server.
func (c *Client) ProcessSet(ctx context.Context, setID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodProcessSet, wrapperspb.String(setID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
