package ingest

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/gesture"
	"github.com/bunchim/archer/internal/session"
)

// ToStatusError maps session errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, events.ErrInvalidEvent),
		errors.Is(err, core.ErrInvalidPhysicsInput):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrMissingLocation),
		errors.Is(err, gesture.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, session.ErrNoSession):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
