package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pose is a discrete hand gesture recognised by the armband.
type Pose int

const (
	PoseUnknown Pose = iota
	PoseRest
	PoseDoubleTap
	PoseFist
	PoseWaveIn
	PoseWaveOut
	PoseFingersSpread
)

// Poses lists every pose in declaration order.
var Poses = []Pose{
	PoseUnknown,
	PoseRest,
	PoseDoubleTap,
	PoseFist,
	PoseWaveIn,
	PoseWaveOut,
	PoseFingersSpread,
}

func (p Pose) String() string {
	switch p {
	case PoseUnknown:
		return "UNKNOWN"
	case PoseRest:
		return "REST"
	case PoseDoubleTap:
		return "DOUBLE_TAP"
	case PoseFist:
		return "FIST"
	case PoseWaveIn:
		return "WAVE_IN"
	case PoseWaveOut:
		return "WAVE_OUT"
	case PoseFingersSpread:
		return "FINGERS_SPREAD"
	default:
		return fmt.Sprintf("Pose(%d)", int(p))
	}
}

// Engages reports whether the pose counts as a deliberate action. The
// armband is held unlocked and asked to acknowledge such poses.
func (p Pose) Engages() bool {
	return p != PoseUnknown && p != PoseRest
}

// ParsePose converts a pose name into a Pose.
func ParsePose(value string) (Pose, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, p := range Poses {
		if p.String() == normalized {
			return p, nil
		}
	}
	return PoseUnknown, fmt.Errorf("unknown pose %q", value)
}

func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Pose) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParsePose(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
