// Package gesture implements the WAITING -> PULLING -> FLYING shot state
// machine driven by armband poses, and the motion-sample buffer that is
// filled while the bow is drawn.
package gesture

import (
	"errors"
	"fmt"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/model"
)

// ErrInvalidTransition reports a pose that has no transition from the
// current state. It is informational: the state is left unchanged.
var ErrInvalidTransition = errors.New("no transition defined")

// Transition applies the pose table:
//
//	WAITING + FIST                                           -> PULLING
//	PULLING + REST|DOUBLE_TAP|WAVE_IN|WAVE_OUT|FINGERS_SPREAD -> FLYING
//
// Every other pair returns the unchanged state and ErrInvalidTransition.
func Transition(state model.FlightState, pose model.Pose) (model.FlightState, error) {
	switch state {
	case model.StateWaiting:
		if pose == model.PoseFist {
			return model.StatePulling, nil
		}
	case model.StatePulling:
		if releases(pose) {
			return model.StateFlying, nil
		}
	}
	return state, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, pose, state)
}

// HandlePose returns the state after pose is applied to state.
func HandlePose(pose model.Pose, state model.FlightState) model.FlightState {
	next, _ := Transition(state, pose)
	return next
}

func releases(p model.Pose) bool {
	switch p {
	case model.PoseRest, model.PoseDoubleTap, model.PoseWaveIn, model.PoseWaveOut, model.PoseFingersSpread:
		return true
	}
	return false
}

// Result describes the effect of one pose on a Machine.
type Result struct {
	Pose    model.Pose
	From    model.FlightState
	To      model.FlightState
	Changed bool
	// Engaged is set for poses the armband should acknowledge (hold
	// unlock plus a user-action notification).
	Engaged bool
	// Err is ErrInvalidTransition when no transition applied.
	Err error
}

// Observer is notified after every state change.
type Observer func(Result)

// Option customises Machine construction.
type Option func(*Machine)

// WithMaxSamples bounds the sample buffer, keeping the newest n samples.
func WithMaxSamples(n int) Option {
	return func(m *Machine) {
		m.buffer = NewSampleBuffer(n)
	}
}

// WithObserver registers fn for state changes.
func WithObserver(fn Observer) Option {
	return func(m *Machine) {
		m.OnTransition(fn)
	}
}

// Machine owns the live FlightState and its SampleBuffer. It is not safe for
// concurrent use; callers serialise events onto it.
type Machine struct {
	state  model.FlightState
	buffer *SampleBuffer

	lastAccel     *model.Vector3
	lastAccelTime int64

	observers []Observer
}

// NewMachine returns a machine in WAITING with an empty buffer.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:  model.StateWaiting,
		buffer: NewSampleBuffer(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns the current state.
func (m *Machine) State() model.FlightState { return m.state }

// OnTransition registers fn for state changes.
func (m *Machine) OnTransition(fn Observer) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

// HandlePose applies pose to the current state.
func (m *Machine) HandlePose(pose model.Pose) Result {
	next, err := Transition(m.state, pose)
	res := Result{
		Pose:    pose,
		From:    m.state,
		To:      next,
		Changed: next != m.state,
		Engaged: pose.Engages(),
		Err:     err,
	}
	if res.Changed {
		m.enter(next)
		m.notify(res)
	}
	return res
}

// IngestAcceleration records the latest raw accelerometer reading. It is
// combined with the next orientation sample.
func (m *Machine) IngestAcceleration(raw model.Vector3, ts int64) {
	v := raw
	m.lastAccel = &v
	m.lastAccelTime = ts
}

// IngestOrientation derives gravity from q, computes the linear acceleration
// of the latest raw reading and buffers it while PULLING. The sample is
// stamped with the accelerometer time, or ts if none has arrived yet.
// buffered reports whether the sample was kept.
func (m *Machine) IngestOrientation(q model.Quaternion, ts int64) (sample model.AccelerationSample, buffered bool) {
	g := core.Gravity(q)
	sample = model.AccelerationSample{
		Linear:    core.LinearAcceleration(m.lastAccel, &g),
		Timestamp: ts,
	}
	if m.lastAccel != nil {
		sample.Raw = *m.lastAccel
		sample.Timestamp = m.lastAccelTime
	}
	if m.state != model.StatePulling {
		return sample, false
	}
	m.buffer.Append(sample)
	return sample, true
}

// Samples returns a copy of the buffered samples.
func (m *Machine) Samples() []model.AccelerationSample { return m.buffer.Samples() }

// BufferLen returns the number of buffered samples.
func (m *Machine) BufferLen() int { return m.buffer.Len() }

// Reset returns the machine to WAITING, clearing the buffer. Observers are
// notified if the state changed.
func (m *Machine) Reset() {
	from := m.state
	m.enter(model.StateWaiting)
	if from != model.StateWaiting {
		m.notify(Result{From: from, To: model.StateWaiting, Changed: true})
	}
}

func (m *Machine) enter(s model.FlightState) {
	m.state = s
	if s == model.StateWaiting {
		m.buffer.Reset()
	}
}

func (m *Machine) notify(res Result) {
	for _, fn := range m.observers {
		fn(res)
	}
}
