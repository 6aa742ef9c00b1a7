package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Arm identifies which arm the armband was synced on.
type Arm int

const (
	ArmUnknown Arm = iota
	ArmLeft
	ArmRight
)

func (a Arm) String() string {
	switch a {
	case ArmLeft:
		return "LEFT"
	case ArmRight:
		return "RIGHT"
	default:
		return "UNKNOWN"
	}
}

// ParseArm converts an arm name into an Arm. Empty input maps to ArmUnknown.
func ParseArm(value string) (Arm, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "UNKNOWN":
		return ArmUnknown, nil
	case "LEFT":
		return ArmLeft, nil
	case "RIGHT":
		return ArmRight, nil
	default:
		return ArmUnknown, fmt.Errorf("unknown arm %q", value)
	}
}

func (a Arm) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Arm) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseArm(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// XDirection is the direction the armband's +x axis faces on the arm.
type XDirection int

const (
	XDirectionUnknown XDirection = iota
	XDirectionTowardWrist
	XDirectionTowardElbow
)

func (d XDirection) String() string {
	switch d {
	case XDirectionTowardWrist:
		return "TOWARD_WRIST"
	case XDirectionTowardElbow:
		return "TOWARD_ELBOW"
	default:
		return "UNKNOWN"
	}
}

// ParseXDirection converts a direction name into an XDirection.
func ParseXDirection(value string) (XDirection, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "UNKNOWN":
		return XDirectionUnknown, nil
	case "TOWARD_WRIST":
		return XDirectionTowardWrist, nil
	case "TOWARD_ELBOW":
		return XDirectionTowardElbow, nil
	default:
		return XDirectionUnknown, fmt.Errorf("unknown x direction %q", value)
	}
}

func (d XDirection) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *XDirection) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseXDirection(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnlockType selects how long the armband stays unlocked after a request.
type UnlockType int

const (
	// UnlockTimed keeps the armband unlocked briefly, locking after inactivity.
	UnlockTimed UnlockType = iota
	// UnlockHold keeps the armband unlocked until told otherwise.
	UnlockHold
)

func (u UnlockType) String() string {
	if u == UnlockHold {
		return "HOLD"
	}
	return "TIMED"
}

// ParseUnlockType converts an unlock name into an UnlockType.
func ParseUnlockType(value string) (UnlockType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "TIMED":
		return UnlockTimed, nil
	case "HOLD":
		return UnlockHold, nil
	default:
		return UnlockTimed, fmt.Errorf("unknown unlock type %q", value)
	}
}

func (u UnlockType) MarshalJSON() ([]byte, error) { return json.Marshal(u.String()) }

func (u *UnlockType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseUnlockType(raw)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
