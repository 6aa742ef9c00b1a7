package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlightState is the phase of a shot. Exactly one is live per session.
type FlightState int

const (
	StateWaiting FlightState = iota
	StatePulling
	StateFlying
)

func (s FlightState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StatePulling:
		return "PULLING"
	case StateFlying:
		return "FLYING"
	default:
		return fmt.Sprintf("FlightState(%d)", int(s))
	}
}

// ParseFlightState converts a state name into a FlightState.
func ParseFlightState(value string) (FlightState, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "WAITING":
		return StateWaiting, nil
	case "PULLING":
		return StatePulling, nil
	case "FLYING":
		return StateFlying, nil
	default:
		return StateWaiting, fmt.Errorf("unknown flight state %q", value)
	}
}

func (s FlightState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *FlightState) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseFlightState(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
