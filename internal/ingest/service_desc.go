package ingest

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "archer.v1.SessionService"

// Full method names.
const (
	SubmitEventMethod   = "/" + ServiceName + "/SubmitEvent"
	PublishEventsMethod = "/" + ServiceName + "/PublishEvents"
	GetSessionMethod    = "/" + ServiceName + "/GetSession"
	ResumeMethod        = "/" + ServiceName + "/Resume"
	ListShotsMethod     = "/" + ServiceName + "/ListShots"
)

// SessionServiceServer is the server API for archer.v1.SessionService.
// Messages are google.protobuf.Struct values holding the JSON form of
// events, snapshots and shots.
type SessionServiceServer interface {
	SubmitEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PublishEvents(SessionService_PublishEventsServer) error
	GetSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Resume(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListShots(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// SessionService_PublishEventsServer is the server side of the
// client-streaming PublishEvents RPC.
type SessionService_PublishEventsServer interface {
	SendAndClose(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionService_ServiceDesc, srv)
}

// SessionService_ServiceDesc describes archer.v1.SessionService.
var SessionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitEvent", Handler: submitEventHandler},
		{MethodName: "GetSession", Handler: getSessionHandler},
		{MethodName: "Resume", Handler: resumeHandler},
		{MethodName: "ListShots", Handler: listShotsHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "PublishEvents",
			Handler:       publishEventsHandler,
			ClientStreams: true,
		},
	},
	Metadata: "archer/v1/session.proto",
}

func submitEventHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).SubmitEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitEventMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).SubmitEvent(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).GetSession(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func resumeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Resume(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResumeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).Resume(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listShotsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).ListShots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListShotsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).ListShots(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func publishEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(SessionServiceServer).PublishEvents(&publishEventsServer{ServerStream: stream})
}

type publishEventsServer struct {
	grpc.ServerStream
}

func (x *publishEventsServer) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *publishEventsServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
