// Package events defines the single tagged event type that carries every
// armband, phone and platform notification into a session.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bunchim/archer/model"
)

// ErrInvalidEvent indicates an event whose payload does not match its kind.
var ErrInvalidEvent = errors.New("invalid event")

// Kind tags the payload an Event carries.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConnect: armband connected. Payload: none.
	KindConnect
	// KindDisconnect: armband disconnected. Payload: none.
	KindDisconnect
	// KindArmSync: armband recognised the arm. Payload: Arm, XDirection.
	KindArmSync
	// KindArmUnsync: armband lost the arm. Payload: none.
	KindArmUnsync
	// KindUnlock / KindLock: armband pose delivery toggled. Payload: none.
	KindUnlock
	KindLock
	// KindPose: gesture recognised. Payload: Pose.
	KindPose
	// KindOrientation: armband rotation. Payload: Rotation.
	KindOrientation
	// KindAcceleration: raw armband accelerometer. Payload: Vector.
	KindAcceleration
	// KindGyroscope: raw armband gyroscope. Payload: Vector.
	KindGyroscope
	// KindLocation: current device location. Payload: Location.
	KindLocation
	// KindTarget: target location for the session. Payload: Location.
	KindTarget
	// KindPhoneSensor: phone accelerometer and magnetometer. Payload: Phone.
	KindPhoneSensor
)

var kindNames = map[Kind]string{
	KindUnknown:      "UNKNOWN",
	KindConnect:      "CONNECT",
	KindDisconnect:   "DISCONNECT",
	KindArmSync:      "ARM_SYNC",
	KindArmUnsync:    "ARM_UNSYNC",
	KindUnlock:       "UNLOCK",
	KindLock:         "LOCK",
	KindPose:         "POSE",
	KindOrientation:  "ORIENTATION",
	KindAcceleration: "ACCELERATION",
	KindGyroscope:    "GYROSCOPE",
	KindLocation:     "LOCATION",
	KindTarget:       "TARGET",
	KindPhoneSensor:  "PHONE_SENSOR",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a kind name into a Kind.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for k, name := range kindNames {
		if name == normalized && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, value)
}

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *Kind) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PhoneSensor is one paired phone accelerometer/magnetometer reading.
type PhoneSensor struct {
	Gravity     model.Vector3 `json:"gravity"`
	Geomagnetic model.Vector3 `json:"geomagnetic"`
}

// Event is one inbound notification. Only the payload fields belonging to
// Kind are set.
type Event struct {
	Kind      Kind   `json:"kind"`
	Timestamp int64  `json:"timestamp,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`

	Pose       *model.Pose       `json:"pose,omitempty"`
	Rotation   *model.Quaternion `json:"rotation,omitempty"`
	Vector     *model.Vector3    `json:"vector,omitempty"`
	Arm        *model.Arm        `json:"arm,omitempty"`
	XDirection *model.XDirection `json:"x_direction,omitempty"`
	Location   *model.LatLng     `json:"location,omitempty"`
	Phone      *PhoneSensor      `json:"phone,omitempty"`
}

// Validate checks that the payload required by Kind is present.
func (e Event) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s event requires %s", ErrInvalidEvent, e.Kind, field)
	}
	switch e.Kind {
	case KindConnect, KindDisconnect, KindArmUnsync, KindLock, KindUnlock:
		return nil
	case KindArmSync:
		if e.Arm == nil {
			return missing("arm")
		}
		return nil
	case KindPose:
		if e.Pose == nil {
			return missing("pose")
		}
		return nil
	case KindOrientation:
		if e.Rotation == nil {
			return missing("rotation")
		}
		return nil
	case KindAcceleration, KindGyroscope:
		if e.Vector == nil {
			return missing("vector")
		}
		return nil
	case KindLocation, KindTarget:
		if e.Location == nil {
			return missing("location")
		}
		if err := e.Location.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		return nil
	case KindPhoneSensor:
		if e.Phone == nil {
			return missing("phone")
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported kind %s", ErrInvalidEvent, e.Kind)
	}
}

// Constructors for the common kinds.

func Connect(ts int64) Event    { return Event{Kind: KindConnect, Timestamp: ts} }
func Disconnect(ts int64) Event { return Event{Kind: KindDisconnect, Timestamp: ts} }
func ArmUnsync(ts int64) Event  { return Event{Kind: KindArmUnsync, Timestamp: ts} }

func ArmSync(ts int64, arm model.Arm, dir model.XDirection) Event {
	return Event{Kind: KindArmSync, Timestamp: ts, Arm: &arm, XDirection: &dir}
}

func Pose(ts int64, p model.Pose) Event {
	return Event{Kind: KindPose, Timestamp: ts, Pose: &p}
}

func Orientation(ts int64, q model.Quaternion) Event {
	return Event{Kind: KindOrientation, Timestamp: ts, Rotation: &q}
}

func Acceleration(ts int64, v model.Vector3) Event {
	return Event{Kind: KindAcceleration, Timestamp: ts, Vector: &v}
}

func Gyroscope(ts int64, v model.Vector3) Event {
	return Event{Kind: KindGyroscope, Timestamp: ts, Vector: &v}
}

func Location(ts int64, l model.LatLng) Event {
	return Event{Kind: KindLocation, Timestamp: ts, Location: &l}
}

func Target(l model.LatLng) Event {
	return Event{Kind: KindTarget, Location: &l}
}

func Phone(ts int64, gravity, geomagnetic model.Vector3) Event {
	return Event{Kind: KindPhoneSensor, Timestamp: ts, Phone: &PhoneSensor{Gravity: gravity, Geomagnetic: geomagnetic}}
}
