package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/internal/device"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/gesture"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/observability"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/model"
	"github.com/bunchim/archer/shotlog"
)

var home = model.LatLng{Latitude: 51.5007, Longitude: -0.1246}

type harness struct {
	client  *Client
	session *session.Session
	shots   *shotlog.Log
	device  *device.Recorder
	rpc     *observability.RPCCollector
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()

	rec := &device.Recorder{}
	shots := shotlog.New()
	sess := session.New(append([]session.Option{
		session.WithDevice(rec),
		session.WithSink(shots),
	}, opts...)...)

	rpc, err := observability.NewRPCCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	server := NewGRPCServer(NewServer(sess, shots, logging.Noop()), logging.Noop(), rpc)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: NewClient(conn), session: sess, shots: shots, device: rec, rpc: rpc}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitEventDrivesSession(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	for _, ev := range []events.Event{
		events.Location(1, home),
		events.Target(model.LatLng{Latitude: 51.501, Longitude: -0.124}),
		events.Pose(2, model.PoseFist),
		events.Acceleration(3, model.Vector3{Z: 1000}),
		events.Orientation(4, model.IdentityQuaternion),
	} {
		if _, err := h.client.SubmitEvent(ctx, ev); err != nil {
			t.Fatalf("SubmitEvent(%s): %v", ev.Kind, err)
		}
	}

	snap, err := h.client.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if snap.State != model.StatePulling || snap.BufferedSamples != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Location == nil || *snap.Location != home {
		t.Fatalf("snapshot location = %v", snap.Location)
	}

	snap, err = h.client.SubmitEvent(ctx, events.Pose(5, model.PoseRest))
	if err != nil {
		t.Fatalf("SubmitEvent(REST): %v", err)
	}
	if snap.State != model.StateFlying || snap.LastShot == nil {
		t.Fatalf("expected FLYING with a shot, got %+v", snap)
	}
	if snap.LastShot.Source != home || snap.LastShot.Samples != 1 {
		t.Fatalf("unexpected shot %+v", snap.LastShot)
	}

	shots, err := h.client.ListShots(ctx)
	if err != nil {
		t.Fatalf("ListShots: %v", err)
	}
	if len(shots) != 1 || shots[0].ID != snap.LastShot.ID {
		t.Fatalf("ListShots = %+v", shots)
	}

	snap, err = h.client.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if snap.State != model.StateWaiting {
		t.Fatalf("state after Resume = %s", snap.State)
	}

	if got := testutil.ToFloat64(h.rpc.RPCRequests.WithLabelValues("SessionService", "SubmitEvent", "OK")); got != 6 {
		t.Fatalf("SubmitEvent OK count = %v, want 6", got)
	}
}

func TestSubmitEventMapsErrors(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	bad, err := structpb.NewStruct(map[string]interface{}{"kind": "POSE"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := new(structpb.Struct)
	err = h.client.cc.Invoke(ctx, SubmitEventMethod, bad, out)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing payload code = %v, want InvalidArgument", status.Code(err))
	}

	if _, err := h.client.SubmitEvent(ctx, events.Pose(1, model.PoseFist)); err != nil {
		t.Fatalf("SubmitEvent(FIST): %v", err)
	}
	_, err = h.client.SubmitEvent(ctx, events.Pose(2, model.PoseRest))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("release without location code = %v, want FailedPrecondition", status.Code(err))
	}

	snap, err := h.client.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if snap.State != model.StateWaiting || snap.Failures != 1 {
		t.Fatalf("session did not recover: %+v", snap)
	}
}

func TestPublishEventsCountsRejected(t *testing.T) {
	h := newHarness(t, session.WithAutoResume(true))
	ctx := testContext(t)

	pub, err := h.client.PublishEvents(ctx)
	if err != nil {
		t.Fatalf("PublishEvents: %v", err)
	}
	stream := []events.Event{
		events.Connect(1),
		events.Location(2, home),
		{Kind: events.KindOrientation},
		events.Pose(3, model.PoseFist),
		events.Pose(4, model.PoseWaveIn),
	}
	handler := pub.Handler()
	for _, ev := range stream {
		if err := handler(ctx, ev); err != nil {
			t.Fatalf("Send(%s): %v", ev.Kind, err)
		}
	}
	res, err := pub.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	if res.Accepted != 4 || res.Rejected != 1 || len(res.Errors) != 1 {
		t.Fatalf("unexpected publish result %+v", res)
	}
	if !res.Session.Connected || res.Session.Shots != 1 || res.Session.State != model.StateWaiting {
		t.Fatalf("unexpected session %+v", res.Session)
	}
	if h.shots.Len() != 1 {
		t.Fatalf("shot log len = %d, want 1", h.shots.Len())
	}

	calls := h.device.Calls()
	if len(calls) != 4 {
		t.Fatalf("device calls = %+v, want hold+notify twice", calls)
	}
}

func TestServerWithoutSessionIsUnavailable(t *testing.T) {
	srv := NewServer(nil, nil, nil)
	_, err := srv.GetSession(context.Background(), nil)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %v, want Unavailable", status.Code(err))
	}
}

func TestEventStructRoundTrip(t *testing.T) {
	ev := events.ArmSync(42, model.ArmRight, model.XDirectionTowardElbow)
	st, err := EventToStruct(ev)
	if err != nil {
		t.Fatalf("EventToStruct: %v", err)
	}
	if got := st.GetFields()["kind"].GetStringValue(); got != "ARM_SYNC" {
		t.Fatalf("kind field = %q", got)
	}
	back, err := EventFromStruct(st)
	if err != nil {
		t.Fatalf("EventFromStruct: %v", err)
	}
	if back.Kind != events.KindArmSync || *back.Arm != model.ArmRight ||
		*back.XDirection != model.XDirectionTowardElbow || back.Timestamp != 42 {
		t.Fatalf("round trip mismatch %+v", back)
	}

	if _, err := EventFromStruct(nil); !errors.Is(err, events.ErrInvalidEvent) {
		t.Fatalf("nil struct err = %v", err)
	}
}

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "invalid event", err: fmt.Errorf("%w: bad", events.ErrInvalidEvent), code: codes.InvalidArgument},
		{name: "invalid physics", err: core.ErrInvalidPhysicsInput, code: codes.InvalidArgument},
		{name: "missing location", err: core.ErrMissingLocation, code: codes.FailedPrecondition},
		{name: "invalid transition", err: gesture.ErrInvalidTransition, code: codes.FailedPrecondition},
		{name: "no session", err: session.ErrNoSession, code: codes.Unavailable},
		{name: "canceled", err: context.Canceled, code: codes.Canceled},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
