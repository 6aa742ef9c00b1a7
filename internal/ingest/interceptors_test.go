package ingest

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/bunchim/archer/internal/logging"
)

func TestRequestIDInterceptorUsesIncomingMetadata(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(logging.Noop())
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-123"))

	var gotID string
	var gotLogger logging.Logger
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: GetSessionMethod}, func(ctx context.Context, req interface{}) (interface{}, error) {
		gotID = logging.RequestIDFromContext(ctx)
		gotLogger = logging.FromContext(ctx, nil)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotID != "req-123" {
		t.Fatalf("request id = %q, want req-123", gotID)
	}
	if gotLogger == nil {
		t.Fatal("expected a request logger on the context")
	}
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	var gotID string
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: ResumeMethod}, func(ctx context.Context, req interface{}) (interface{}, error) {
		gotID = logging.RequestIDFromContext(ctx)
		return nil, nil
	})
	if gotID == "" {
		t.Fatal("expected a generated request id")
	}
}

type streamStub struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *streamStub) Context() context.Context { return s.ctx }

func TestRequestIDStreamInterceptorOverridesContext(t *testing.T) {
	interceptor := RequestIDStreamServerInterceptor(logging.Noop())
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "stream-1"))

	var gotID string
	err := interceptor(nil, &streamStub{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: PublishEventsMethod}, func(srv interface{}, ss grpc.ServerStream) error {
		gotID = logging.RequestIDFromContext(ss.Context())
		return nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotID != "stream-1" {
		t.Fatalf("request id = %q, want stream-1", gotID)
	}
}

func TestOutgoingPropagatesRequestID(t *testing.T) {
	ctx := outgoing(logging.ContextWithRequestID(context.Background(), "abc"))
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok || firstHeader(md, RequestIDMetadataKey) != "abc" {
		t.Fatalf("outgoing metadata = %v", md)
	}
}
