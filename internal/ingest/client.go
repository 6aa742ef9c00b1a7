package ingest

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/model"
)

// Client is a typed client for archer.v1.SessionService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial opens an insecure connection to target with client tracing enabled.
// Callers close the returned connection.
func Dial(target string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	all := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, all...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// outgoing propagates the request ID on ctx, if any.
func outgoing(ctx context.Context) context.Context {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
	}
	return ctx
}

// SubmitEvent sends one event and returns the resulting snapshot.
func (c *Client) SubmitEvent(ctx context.Context, ev events.Event, opts ...grpc.CallOption) (session.Snapshot, error) {
	in, err := EventToStruct(ev)
	if err != nil {
		return session.Snapshot{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), SubmitEventMethod, in, out, opts...); err != nil {
		return session.Snapshot{}, err
	}
	var snap session.Snapshot
	err = fromStruct(out, &snap)
	return snap, err
}

// GetSession returns the current snapshot.
func (c *Client) GetSession(ctx context.Context, opts ...grpc.CallOption) (session.Snapshot, error) {
	return c.snapshotCall(ctx, GetSessionMethod, opts...)
}

// Resume asks the session to leave FLYING.
func (c *Client) Resume(ctx context.Context, opts ...grpc.CallOption) (session.Snapshot, error) {
	return c.snapshotCall(ctx, ResumeMethod, opts...)
}

func (c *Client) snapshotCall(ctx context.Context, method string, opts ...grpc.CallOption) (session.Snapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), method, &emptypb.Empty{}, out, opts...); err != nil {
		return session.Snapshot{}, err
	}
	var snap session.Snapshot
	err := fromStruct(out, &snap)
	return snap, err
}

// ListShots returns every retained shot.
func (c *Client) ListShots(ctx context.Context, opts ...grpc.CallOption) ([]model.Shot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), ListShotsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	var resp struct {
		Shots []model.Shot `json:"shots"`
	}
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return resp.Shots, nil
}

// Publisher streams events to the server.
type Publisher struct {
	stream grpc.ClientStream
}

// PublishEvents opens a client stream.
func (c *Client) PublishEvents(ctx context.Context, opts ...grpc.CallOption) (*Publisher, error) {
	stream, err := c.cc.NewStream(outgoing(ctx), &SessionService_ServiceDesc.Streams[0], PublishEventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{stream: stream}, nil
}

// Send queues one event.
func (p *Publisher) Send(ev events.Event) error {
	in, err := EventToStruct(ev)
	if err != nil {
		return err
	}
	return p.stream.SendMsg(in)
}

// CloseAndRecv ends the stream and returns the server's summary.
func (p *Publisher) CloseAndRecv() (PublishResult, error) {
	if err := p.stream.CloseSend(); err != nil {
		return PublishResult{}, err
	}
	out := new(structpb.Struct)
	if err := p.stream.RecvMsg(out); err != nil {
		return PublishResult{}, err
	}
	var res PublishResult
	err := fromStruct(out, &res)
	return res, err
}

// Handler returns an events.Handler that forwards each event over this
// publisher.
func (p *Publisher) Handler() events.Handler {
	return func(_ context.Context, ev events.Event) error {
		return p.Send(ev)
	}
}
