// Package ingest exposes a session over gRPC so platform bridges can push
// armband, phone and location events and read back session status.
package ingest

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/observability"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/model"
)

// ShotLister lists completed shots, oldest first.
type ShotLister interface {
	List() []model.Shot
}

// PublishResult is the response to PublishEvents.
type PublishResult struct {
	Session  session.Snapshot `json:"session"`
	Accepted int              `json:"accepted"`
	Rejected int              `json:"rejected"`
	Errors   []string         `json:"errors,omitempty"`
}

// maxReportedErrors bounds PublishResult.Errors.
const maxReportedErrors = 16

// Server implements SessionServiceServer on top of a Session.
type Server struct {
	session *session.Session
	shots   ShotLister
	log     logging.Logger
}

// NewServer binds a Server to sess. shots may be nil.
func NewServer(sess *session.Session, shots ShotLister, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{session: sess, shots: shots, log: log}
}

// SubmitEvent applies one event and returns the resulting snapshot.
func (s *Server) SubmitEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ev, err := EventFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.session.Dispatch(ctx, ev); err != nil {
		s.logger(ctx).Warn(ctx, "SubmitEvent failed", logging.String("kind", ev.Kind.String()), logging.Err(err))
		return nil, ToStatusError(err)
	}
	return s.snapshot()
}

// PublishEvents applies a stream of events in order. Events that fail are
// counted and reported but do not end the stream.
func (s *Server) PublishEvents(stream SessionService_PublishEventsServer) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx := stream.Context()
	var res PublishResult
	for {
		in, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		ev, err := EventFromStruct(in)
		if err == nil {
			err = s.session.Dispatch(ctx, ev)
		}
		if err != nil {
			res.Rejected++
			if len(res.Errors) < maxReportedErrors {
				res.Errors = append(res.Errors, err.Error())
			}
			continue
		}
		res.Accepted++
	}

	res.Session = s.session.Snapshot()
	s.logger(ctx).Info(ctx, "event stream closed",
		logging.Int("accepted", res.Accepted),
		logging.Int("rejected", res.Rejected),
	)
	out, err := toStruct(res)
	if err != nil {
		return ToStatusError(err)
	}
	return stream.SendAndClose(out)
}

// GetSession returns the current snapshot.
func (s *Server) GetSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.snapshot()
}

// Resume returns a FLYING session to WAITING.
func (s *Server) Resume(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.session.Resume(ctx)
	return s.snapshot()
}

// ListShots returns every retained shot as {"shots": [...]}.
func (s *Server) ListShots(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	shots := []model.Shot{}
	if s.shots != nil {
		shots = s.shots.List()
	}
	out, err := toStruct(struct {
		Shots []model.Shot `json:"shots"`
	}{Shots: shots})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *Server) snapshot() (*structpb.Struct, error) {
	out, err := toStruct(s.session.Snapshot())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *Server) ensureReady() error {
	if s == nil || s.session == nil {
		return ToStatusError(session.ErrNoSession)
	}
	return nil
}

func (s *Server) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}

// NewGRPCServer builds a gRPC server with the standard interceptor chain
// and the session service registered. rpc may be nil.
func NewGRPCServer(srv SessionServiceServer, log logging.Logger, rpc *observability.RPCCollector, opts ...grpc.ServerOption) *grpc.Server {
	unary := []grpc.UnaryServerInterceptor{RequestIDUnaryServerInterceptor(log)}
	stream := []grpc.StreamServerInterceptor{RequestIDStreamServerInterceptor(log)}
	if rpc != nil {
		unary = append(unary, rpc.UnaryServerInterceptor())
		stream = append(stream, rpc.StreamServerInterceptor())
	}
	unary = append(unary, TracingUnaryServerInterceptor())
	stream = append(stream, TracingStreamServerInterceptor())

	all := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}, opts...)
	server := grpc.NewServer(all...)
	RegisterSessionServiceServer(server, srv)
	return server
}
