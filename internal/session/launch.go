package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/model"
)

// LaunchSource selects where the launch orientation of a shot comes from.
type LaunchSource string

const (
	// LaunchFixed uses Launch.Orientation as configured.
	LaunchFixed LaunchSource = "fixed"
	// LaunchDevice uses the latest armband orientation.
	LaunchDevice LaunchSource = "device"
	// LaunchPhone uses the latest phone orientation.
	LaunchPhone LaunchSource = "phone"
)

// ParseLaunchSource converts a name into a LaunchSource.
func ParseLaunchSource(value string) (LaunchSource, error) {
	switch LaunchSource(strings.ToLower(strings.TrimSpace(value))) {
	case "", LaunchFixed:
		return LaunchFixed, nil
	case LaunchDevice:
		return LaunchDevice, nil
	case LaunchPhone:
		return LaunchPhone, nil
	default:
		return LaunchFixed, fmt.Errorf("unknown launch source %q", value)
	}
}

func (l *LaunchSource) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseLaunchSource(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Placeholder launch inputs used until draw force and aim are measured.
const (
	DefaultForce = 100.0
	DefaultYaw   = 0.8
	DefaultPitch = -1.4
	DefaultRoll  = 0.26
)

// Launch holds the inputs handed to the trajectory model on release.
type Launch struct {
	Source      LaunchSource      `json:"source"`
	Force       float64           `json:"force"`
	Mass        float64           `json:"mass"`
	Orientation model.Orientation `json:"orientation"`
}

// DefaultLaunch returns the fixed placeholder launch: 100 N on a 500 kg
// body aimed at yaw 0.8, pitch -1.4, roll 0.26 radians.
func DefaultLaunch() Launch {
	return Launch{
		Source: LaunchFixed,
		Force:  DefaultForce,
		Mass:   core.DefaultArrowMass,
		Orientation: model.Orientation{
			Yaw:   DefaultYaw,
			Pitch: DefaultPitch,
			Roll:  DefaultRoll,
		},
	}
}
