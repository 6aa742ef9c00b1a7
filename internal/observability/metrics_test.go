package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bunchim/archer/model"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/archer.v1.SessionService/SubmitEvent"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SessionService", "SubmitEvent", "OK")); got != 1 {
		t.Fatalf("archer_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "archer_rpc_request_duration_seconds", map[string]string{
		"service": "SessionService",
		"method":  "SubmitEvent",
	}); count != 1 {
		t.Fatalf("archer_rpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/archer.v1.SessionService/SubmitEvent"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "no location")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SessionService", "SubmitEvent", "FailedPrecondition")); got != 1 {
		t.Fatalf("archer_rpc_requests_total error label = %v, want 1", got)
	}
}

type fakeStream struct {
	grpc.ServerStream
	remaining int
}

func (s *fakeStream) Context() context.Context     { return context.Background() }
func (s *fakeStream) SetHeader(metadata.MD) error  { return nil }
func (s *fakeStream) SendHeader(metadata.MD) error { return nil }
func (s *fakeStream) SetTrailer(metadata.MD)       {}
func (s *fakeStream) SendMsg(interface{}) error    { return nil }
func (s *fakeStream) RecvMsg(interface{}) error {
	if s.remaining == 0 {
		return io.EOF
	}
	s.remaining--
	return nil
}

func TestStreamInterceptorCountsMessages(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.StreamServerInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/archer.v1.SessionService/PublishEvents", IsClientStream: true}
	err = interceptor(nil, &fakeStream{remaining: 3}, info, func(srv interface{}, ss grpc.ServerStream) error {
		for {
			if err := ss.RecvMsg(nil); err != nil {
				return nil
			}
		}
	})
	if err != nil {
		t.Fatalf("stream interceptor: %v", err)
	}

	if got := testutil.ToFloat64(collector.StreamEvents.WithLabelValues("SessionService", "PublishEvents")); got != 3 {
		t.Fatalf("archer_rpc_stream_messages_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("SessionService", "PublishEvents", "OK")); got != 1 {
		t.Fatalf("archer_rpc_requests_total = %v, want 1", got)
	}
}

func TestCollectorsRegisterIdempotently(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSessionCollector(reg)
	if err != nil {
		t.Fatalf("first NewSessionCollector: %v", err)
	}
	second, err := NewSessionCollector(reg)
	if err != nil {
		t.Fatalf("second NewSessionCollector: %v", err)
	}
	first.ObservePose(model.PoseFist)
	second.ObservePose(model.PoseFist)
	if got := testutil.ToFloat64(first.PosesTotal.WithLabelValues("FIST")); got != 2 {
		t.Fatalf("archer_poses_total{pose=FIST} = %v, want 2", got)
	}
}

func TestSessionCollectorRecordsShots(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSessionCollector(reg)
	if err != nil {
		t.Fatalf("NewSessionCollector: %v", err)
	}

	c.ObserveTransition(model.StateWaiting, model.StatePulling)
	c.ObserveTransition(model.StatePulling, model.StateFlying)
	c.SetBufferedSamples(5)
	c.SetDeviceConnected(true)
	c.ObserveShot(model.Shot{
		Flight:               model.Flight{Range: -0.02},
		RawDisplacement:      2,
		SmoothedDisplacement: 1,
	}, time.Millisecond)
	c.ObserveShotFailure()

	if got := testutil.ToFloat64(c.TransitionsTotal.WithLabelValues("PULLING", "FLYING")); got != 1 {
		t.Fatalf("transitions PULLING->FLYING = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FlightStateGauge); got != float64(model.StateFlying) {
		t.Fatalf("archer_flight_state = %v", got)
	}
	if got := testutil.ToFloat64(c.ShotsTotal.WithLabelValues(OutcomeHit)); got != 1 {
		t.Fatalf("hit shots = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ShotsTotal.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Fatalf("failed shots = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.BufferedSamples); got != 5 {
		t.Fatalf("buffered samples = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.DeviceConnected); got != 1 {
		t.Fatalf("device connected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.DisplacementRatio); got != 0.5 {
		t.Fatalf("displacement ratio = %v, want 0.5", got)
	}
	if count := histogramSampleCount(t, reg, "archer_flight_range_meters", nil); count != 1 {
		t.Fatalf("archer_flight_range_meters sample_count = %d, want 1", count)
	}
}

func TestNilSessionCollectorIsSafe(t *testing.T) {
	var c *SessionCollector
	c.ObservePose(model.PoseRest)
	c.ObserveTransition(model.StateWaiting, model.StatePulling)
	c.ObserveShot(model.Shot{}, 0)
	c.ObserveShotFailure()
	c.SetBufferedSamples(1)
	c.SetDeviceConnected(false)
	if c.Gatherer() != nil {
		t.Fatal("nil collector should have nil gatherer")
	}
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	rpc, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	sess, err := NewSessionCollector(reg)
	if err != nil {
		t.Fatalf("NewSessionCollector: %v", err)
	}
	rpc.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	rpc.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)
	sess.ObservePose(model.PoseWaveOut)
	sess.SetBufferedSamples(7)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	rpc.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"archer_rpc_requests_total",
		"archer_rpc_request_duration_seconds",
		"archer_poses_total",
		"archer_sample_buffer_samples 7",
		`pose="WAVE_OUT"`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"":                                 {"unknown", "unknown"},
		"/archer.v1.SessionService/Resume": {"SessionService", "Resume"},
		"SessionService/GetSession":        {"SessionService", "GetSession"},
		"/onlyone":                         {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Errorf("SplitMethod(%q) = %q, %q; want %q, %q", in, svc, m, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
