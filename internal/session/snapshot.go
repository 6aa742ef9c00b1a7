package session

import "github.com/bunchim/archer/model"

// Snapshot is a read-only copy of session status.
type Snapshot struct {
	ID              string            `json:"id"`
	State           model.FlightState `json:"state"`
	BufferedSamples int               `json:"buffered_samples"`

	Connected  bool             `json:"connected"`
	Synced     bool             `json:"synced"`
	Unlocked   bool             `json:"unlocked"`
	Arm        model.Arm        `json:"arm"`
	XDirection model.XDirection `json:"x_direction"`

	Location       *model.LatLng `json:"location,omitempty"`
	Target         *model.LatLng `json:"target,omitempty"`
	ResolvingError bool          `json:"resolving_error"`

	Orientation      *model.OrientationSample `json:"orientation,omitempty"`
	PhoneOrientation *model.OrientationSample `json:"phone_orientation,omitempty"`
	Gyroscope        model.Vector3            `json:"gyroscope"`

	Launch    Launch      `json:"launch"`
	Shots     int         `json:"shots"`
	Failures  int         `json:"failures"`
	LastShot  *model.Shot `json:"last_shot,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// Snapshot returns the current status.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:              s.id,
		State:           s.machine.State(),
		BufferedSamples: s.machine.BufferLen(),
		Connected:       s.connected,
		Synced:          s.synced,
		Unlocked:        s.unlocked,
		Arm:             s.arm,
		XDirection:      s.xDirection,
		ResolvingError:  s.resolvingError,
		Gyroscope:       s.gyroscope,
		Launch:          s.launch,
		Shots:           s.shots,
		Failures:        s.failures,
		LastError:       s.lastError,
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if s.target != nil {
		t := *s.target
		snap.Target = &t
	}
	if s.orientation != nil {
		o := *s.orientation
		snap.Orientation = &o
	}
	if s.phoneOrientation != nil {
		o := *s.phoneOrientation
		snap.PhoneOrientation = &o
	}
	if s.lastShot != nil {
		shot := *s.lastShot
		snap.LastShot = &shot
	}
	return snap
}
