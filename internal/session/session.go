// Package session wires the gesture machine, the trajectory model and the
// device collaborator into one run-to-completion event handler.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/internal/device"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/gesture"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/observability"
	"github.com/bunchim/archer/model"
)

var (
	// ErrNoSession indicates an operation on a transport with no session bound.
	ErrNoSession = errors.New("no active session")
	// ErrMissingLocation is re-exported from core for callers of this package.
	ErrMissingLocation = core.ErrMissingLocation
	// ErrInvalidPhysicsInput is re-exported from core for callers of this package.
	ErrInvalidPhysicsInput = core.ErrInvalidPhysicsInput
	// ErrNoLaunchOrientation indicates the launch source has not reported yet.
	ErrNoLaunchOrientation = fmt.Errorf("%w: launch orientation unavailable", core.ErrInvalidPhysicsInput)
)

// MetricsRecorder receives session measurements.
type MetricsRecorder interface {
	ObservePose(p model.Pose)
	ObserveTransition(from, to model.FlightState)
	ObserveShot(shot model.Shot, d time.Duration)
	ObserveShotFailure()
	SetBufferedSamples(n int)
	SetDeviceConnected(connected bool)
}

// ShotSink receives every completed shot, typically a map display.
type ShotSink interface {
	Add(shot model.Shot) error
}

// Session holds the live flight state for one armband. All methods are safe
// for concurrent use; events are applied one at a time.
type Session struct {
	mu sync.Mutex

	id         string
	machine    *gesture.Machine
	maxSamples int
	device     device.Device
	log        logging.Logger
	metrics    MetricsRecorder
	sink       ShotSink
	launch     Launch
	trajectory core.TrajectoryModel
	autoResume bool
	now        func() time.Time

	location       *model.LatLng
	target         *model.LatLng
	resolvingError bool

	connected  bool
	synced     bool
	unlocked   bool
	arm        model.Arm
	xDirection model.XDirection

	orientation      *model.OrientationSample
	phoneOrientation *model.OrientationSample
	gyroscope        model.Vector3

	lastShot  *model.Shot
	lastError string
	shots     int
	failures  int
}

// Option customises Session construction.
type Option func(*Session)

// WithID sets the session ID. A random ID is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithDevice injects the armband collaborator.
func WithDevice(d device.Device) Option {
	return func(s *Session) {
		if d != nil {
			s.device = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSink attaches the receiver of completed shots.
func WithSink(sink ShotSink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithLaunch replaces the launch parameters.
func WithLaunch(l Launch) Option {
	return func(s *Session) {
		s.launch = l
	}
}

// WithTrajectoryModel replaces the trajectory model.
func WithTrajectoryModel(m core.TrajectoryModel) Option {
	return func(s *Session) {
		s.trajectory = m
	}
}

// WithTarget sets the initial target.
func WithTarget(t model.LatLng) Option {
	return func(s *Session) {
		s.target = &t
	}
}

// WithLocation sets the initial source location.
func WithLocation(l model.LatLng) Option {
	return func(s *Session) {
		s.location = &l
	}
}

// WithMaxSamples bounds the pulling sample buffer.
func WithMaxSamples(n int) Option {
	return func(s *Session) {
		s.maxSamples = n
	}
}

// WithAutoResume returns the session to WAITING right after a shot lands,
// instead of holding FLYING until Resume.
func WithAutoResume(enabled bool) Option {
	return func(s *Session) {
		s.autoResume = enabled
	}
}

// WithClock overrides the wall clock used to stamp shots.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a session in WAITING. By default it uses the placeholder
// launch, a trajectory model that accepts reversed flights, and a device
// that only logs.
func New(opts ...Option) *Session {
	s := &Session{
		id:         logging.NewID(),
		log:        logging.Noop(),
		metrics:    noopMetrics{},
		launch:     DefaultLaunch(),
		trajectory: core.TrajectoryModel{Gravity: core.StandardGravity, AllowReversed: true},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.device == nil {
		s.device = device.NewLogDevice(s.log)
	}
	s.log = s.log.With(logging.String("session_id", s.id))
	s.machine = gesture.NewMachine(
		gesture.WithMaxSamples(s.maxSamples),
		gesture.WithObserver(s.onTransition),
	)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// State returns the current flight state.
func (s *Session) State() model.FlightState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Outcome reports the effect of one pose.
type Outcome struct {
	Result gesture.Result
	// Shot is set when the pose released a flight that produced a hit.
	Shot *model.Shot
}

// Dispatch applies one event. It is the single entry point for every event
// kind. Errors from a failed flight are returned after the session has
// already recovered to WAITING.
func (s *Session) Dispatch(ctx context.Context, ev events.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case events.KindConnect:
		s.connected = true
		s.metrics.SetDeviceConnected(true)
		s.log.Info(ctx, "armband connected", logging.String("device_id", ev.DeviceID))
	case events.KindDisconnect:
		s.connected = false
		s.synced = false
		s.unlocked = false
		s.arm = model.ArmUnknown
		s.metrics.SetDeviceConnected(false)
		s.log.Info(ctx, "armband disconnected", logging.String("device_id", ev.DeviceID))
	case events.KindArmSync:
		s.synced = true
		s.arm = *ev.Arm
		if ev.XDirection != nil {
			s.xDirection = *ev.XDirection
		}
		s.log.Info(ctx, "arm synced",
			logging.String("arm", s.arm.String()),
			logging.String("x_direction", s.xDirection.String()),
		)
	case events.KindArmUnsync:
		s.synced = false
		s.arm = model.ArmUnknown
		s.xDirection = model.XDirectionUnknown
		s.log.Info(ctx, "arm unsynced")
	case events.KindUnlock:
		s.unlocked = true
	case events.KindLock:
		s.unlocked = false
	case events.KindPose:
		_, err := s.handlePoseLocked(ctx, *ev.Pose)
		return err
	case events.KindOrientation:
		s.ingestOrientationLocked(*ev.Rotation, ev.Timestamp)
	case events.KindAcceleration:
		s.machine.IngestAcceleration(*ev.Vector, ev.Timestamp)
	case events.KindGyroscope:
		s.gyroscope = *ev.Vector
	case events.KindLocation:
		loc := *ev.Location
		s.location = &loc
		s.log.Debug(ctx, "location updated", logging.String("location", loc.String()))
	case events.KindTarget:
		target := *ev.Location
		s.target = &target
		s.log.Info(ctx, "target set", logging.String("target", target.String()))
	case events.KindPhoneSensor:
		if o, ok := core.DeviceOrientation(ev.Phone.Gravity, ev.Phone.Geomagnetic); ok {
			s.phoneOrientation = &model.OrientationSample{Orientation: o, Timestamp: ev.Timestamp}
		}
	}
	return nil
}

// HandlePose applies a pose and reports what happened.
func (s *Session) HandlePose(ctx context.Context, pose model.Pose) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlePoseLocked(ctx, pose)
}

func (s *Session) handlePoseLocked(ctx context.Context, pose model.Pose) (Outcome, error) {
	s.metrics.ObservePose(pose)
	res := s.machine.HandlePose(pose)
	out := Outcome{Result: res}

	s.acknowledge(ctx, res)

	if !res.Changed || res.To != model.StateFlying {
		return out, nil
	}

	shot, err := s.flyLocked(ctx)
	if err != nil {
		s.failures++
		s.lastError = err.Error()
		s.metrics.ObserveShotFailure()
		s.log.Error(ctx, "shot failed; returning to waiting", logging.Err(err))
		s.machine.Reset()
		return out, err
	}
	out.Shot = &shot
	if s.autoResume {
		s.machine.Reset()
	}
	return out, nil
}

// acknowledge asks the armband to stay unlocked and buzz for engaging
// poses, and to fall back to a timed unlock otherwise.
func (s *Session) acknowledge(ctx context.Context, res gesture.Result) {
	if res.Engaged {
		if err := s.device.Unlock(ctx, model.UnlockHold); err != nil {
			s.log.Warn(ctx, "device unlock failed", logging.Err(err))
		}
		if err := s.device.NotifyUserAction(ctx); err != nil {
			s.log.Warn(ctx, "device notify failed", logging.Err(err))
		}
		return
	}
	if err := s.device.Unlock(ctx, model.UnlockTimed); err != nil {
		s.log.Warn(ctx, "device unlock failed", logging.Err(err))
	}
}

func (s *Session) ingestOrientationLocked(q model.Quaternion, ts int64) {
	o := core.EulerAngles(q, s.xDirection)
	s.orientation = &model.OrientationSample{Orientation: o, Timestamp: ts}
	if _, buffered := s.machine.IngestOrientation(q, ts); buffered {
		s.metrics.SetBufferedSamples(s.machine.BufferLen())
	}
}

// flyLocked computes the hit for the flight that just started.
func (s *Session) flyLocked(ctx context.Context) (model.Shot, error) {
	start := time.Now()
	shotID := logging.NewID()
	ctx, span := observability.StartChildSpan(ctx, "session.shot", "shot", shotID,
		attribute.String("session_id", s.id),
		attribute.String("launch_source", string(s.launch.Source)),
	)
	defer span.End()

	samples := s.machine.Samples()
	disp := core.EstimateDisplacement(samples)
	s.log.Info(ctx, "draw distance estimate",
		logging.Int("samples", len(samples)),
		logging.Float64("raw", disp.RawLength),
		logging.Float64("smoothed", disp.SmoothedLength),
	)
	span.SetAttributes(attribute.Int("samples", len(samples)))

	fail := func(err error) (model.Shot, error) {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return model.Shot{}, err
	}

	orientation, err := s.launchOrientationLocked()
	if err != nil {
		return fail(err)
	}
	hit, flight, err := s.trajectory.ComputeHit(s.location, s.launch.Force, s.launch.Mass, orientation)
	if err != nil {
		return fail(err)
	}

	shot := model.Shot{
		ID:                   shotID,
		SessionID:            s.id,
		Source:               *s.location,
		Hit:                  hit,
		Flight:               flight,
		Samples:              len(samples),
		At:                   s.now(),
		RawDisplacement:      disp.RawLength,
		SmoothedDisplacement: disp.SmoothedLength,
	}
	if s.target != nil {
		shot.Target = *s.target
		shot.MissDistance = core.DistanceBetween(hit, shot.Target)
		shot.TargetBearing = core.Heading(shot.Source, shot.Target)
	}

	s.shots++
	s.lastShot = &shot
	s.lastError = ""
	s.metrics.ObserveShot(shot, time.Since(start))
	span.SetAttributes(
		attribute.Float64("range_m", flight.Range),
		attribute.Float64("bearing_deg", flight.Bearing),
		attribute.Float64("miss_m", shot.MissDistance),
	)
	s.log.Info(ctx, "shot landed",
		logging.String("shot_id", shot.ID),
		logging.String("source", shot.Source.String()),
		logging.String("hit", shot.Hit.String()),
		logging.Float64("range_m", flight.Range),
		logging.Float64("miss_m", shot.MissDistance),
	)

	if s.sink != nil {
		if err := s.sink.Add(shot); err != nil {
			s.log.Warn(ctx, "shot sink rejected shot", logging.String("shot_id", shot.ID), logging.Err(err))
		}
	}
	return shot, nil
}

func (s *Session) launchOrientationLocked() (model.Orientation, error) {
	switch s.launch.Source {
	case LaunchDevice:
		if s.orientation == nil {
			return model.Orientation{}, fmt.Errorf("%w: no armband orientation", ErrNoLaunchOrientation)
		}
		return s.orientation.Orientation, nil
	case LaunchPhone:
		if s.phoneOrientation == nil {
			return model.Orientation{}, fmt.Errorf("%w: no phone orientation", ErrNoLaunchOrientation)
		}
		return s.phoneOrientation.Orientation, nil
	default:
		return s.launch.Orientation, nil
	}
}

func (s *Session) onTransition(res gesture.Result) {
	s.metrics.ObserveTransition(res.From, res.To)
	if res.To == model.StateWaiting {
		s.metrics.SetBufferedSamples(0)
	}
	s.log.Info(context.Background(), "flight state changed",
		logging.String("from", res.From.String()),
		logging.String("to", res.To.String()),
		logging.String("pose", res.Pose.String()),
	)
}

// Resume handles the session coming back to the foreground. A session
// resuming while FLYING returns to WAITING.
func (s *Session) Resume(ctx context.Context) model.FlightState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.State() == model.StateFlying {
		s.log.Info(ctx, "resumed while flying; returning to waiting")
		s.machine.Reset()
	}
	return s.machine.State()
}

// Reset returns to WAITING unconditionally.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Reset()
}

// SetResolvingError records whether the location provider is resolving a
// connection failure.
func (s *Session) SetResolvingError(resolving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvingError = resolving
}

// SavedState returns the fields kept across a transient suspension.
func (s *Session) SavedState() model.SavedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := model.SavedState{ResolvingError: s.resolvingError}
	if s.target != nil {
		saved.TargetLatitude = s.target.Latitude
		saved.TargetLongitude = s.target.Longitude
	}
	return saved
}

// Restore applies saved fields. A saved target of (0, 0) is treated as
// unset. Nothing else is restored.
func (s *Session) Restore(saved model.SavedState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvingError = saved.ResolvingError
	if saved.TargetLatitude != 0 || saved.TargetLongitude != 0 {
		t := saved.Target()
		s.target = &t
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePose(model.Pose)                                 {}
func (noopMetrics) ObserveTransition(model.FlightState, model.FlightState) {}
func (noopMetrics) ObserveShot(model.Shot, time.Duration)                  {}
func (noopMetrics) ObserveShotFailure()                                    {}
func (noopMetrics) SetBufferedSamples(int)                                 {}
func (noopMetrics) SetDeviceConnected(bool)                                {}
