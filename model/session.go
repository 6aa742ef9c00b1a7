package model

import "time"

// SavedState holds the only session fields that survive a transient
// suspension. Nothing else is restored.
type SavedState struct {
	ResolvingError  bool    `json:"resolving_error"`
	TargetLatitude  float64 `json:"target_latitude"`
	TargetLongitude float64 `json:"target_longitude"`
}

// Target returns the saved target as a coordinate.
func (s SavedState) Target() LatLng {
	return LatLng{Latitude: s.TargetLatitude, Longitude: s.TargetLongitude}
}

// Flight captures the intermediate values of one trajectory computation.
type Flight struct {
	Force        float64 `json:"force"`
	Mass         float64 `json:"mass"`
	Acceleration float64 `json:"acceleration"`
	ExitVelocity float64 `json:"exit_velocity"`
	LaunchAngle  float64 `json:"launch_angle"`
	AirTime      float64 `json:"air_time"`
	Range        float64 `json:"range"`
	Bearing      float64 `json:"bearing"`
}

// Shot is the outcome of one completed flight.
type Shot struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Source    LatLng    `json:"source"`
	Target    LatLng    `json:"target"`
	Hit       LatLng    `json:"hit"`
	Flight    Flight    `json:"flight"`
	Samples   int       `json:"samples"`
	At        time.Time `json:"at"`

	// RawDisplacement and SmoothedDisplacement are the diagnostic
	// double-integrated draw estimates. They do not affect Hit.
	RawDisplacement      float64 `json:"raw_displacement"`
	SmoothedDisplacement float64 `json:"smoothed_displacement"`

	// MissDistance is the great-circle distance from Hit to Target in metres.
	MissDistance float64 `json:"miss_distance"`
	// TargetBearing is the initial bearing from Source to Target in degrees.
	TargetBearing float64 `json:"target_bearing"`
}
