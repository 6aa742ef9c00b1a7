package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/bunchim/archer/model"
)

const (
	// StandardGravity is the gravitational acceleration used for flights (m/s²).
	StandardGravity = 9.81
	// DefaultArrowMass is the placeholder projectile mass (kg).
	DefaultArrowMass = 500.0
)

var (
	// ErrInvalidPhysicsInput indicates inputs that would make the
	// trajectory undefined: non-positive mass, negative acceleration, a
	// non-finite value, or a launch angle giving negative air time.
	ErrInvalidPhysicsInput = errors.New("invalid physics input")
	// ErrMissingLocation indicates a hit was requested before a source
	// location was resolved.
	ErrMissingLocation = errors.New("source location not resolved")
)

// TrajectoryModel is an idealised flat-earth projectile model without drag.
//
// Flights launched below the horizon (pitch outside (0, π)) have negative
// air time and therefore negative range. By default these are rejected;
// with AllowReversed the negative range is kept and the hit lands on the
// reversed bearing.
type TrajectoryModel struct {
	Gravity       float64
	AllowReversed bool
}

// NewTrajectoryModel returns a strict model using StandardGravity.
func NewTrajectoryModel() TrajectoryModel {
	return TrajectoryModel{Gravity: StandardGravity}
}

// ComputeFlight runs the launch-force/mass/orientation formula chain:
//
//	acceleration = force / mass
//	exitVelocity = sqrt(2 * acceleration)
//	airTime      = exitVelocity * sin(pitch) / g
//	range        = exitVelocity * cos(pitch) * airTime
//	bearing      = degrees(yaw)
func (m TrajectoryModel) ComputeFlight(force, mass float64, o model.Orientation) (model.Flight, error) {
	g := m.Gravity
	if g == 0 {
		g = StandardGravity
	}
	switch {
	case !finite(force):
		return model.Flight{}, fmt.Errorf("%w: force %v is not finite", ErrInvalidPhysicsInput, force)
	case !finite(mass) || mass <= 0:
		return model.Flight{}, fmt.Errorf("%w: mass must be positive, got %v", ErrInvalidPhysicsInput, mass)
	case !finite(o.Yaw) || !finite(o.Pitch):
		return model.Flight{}, fmt.Errorf("%w: orientation (yaw=%v, pitch=%v) is not finite", ErrInvalidPhysicsInput, o.Yaw, o.Pitch)
	case g < 0:
		return model.Flight{}, fmt.Errorf("%w: gravity must be positive, got %v", ErrInvalidPhysicsInput, g)
	}

	f := model.Flight{Force: force, Mass: mass, LaunchAngle: o.Pitch}
	f.Acceleration = force / mass
	if f.Acceleration < 0 {
		return model.Flight{}, fmt.Errorf("%w: negative acceleration %v", ErrInvalidPhysicsInput, f.Acceleration)
	}
	f.ExitVelocity = math.Sqrt(2 * f.Acceleration)
	f.AirTime = (f.ExitVelocity * math.Sin(f.LaunchAngle)) / g
	if f.AirTime < 0 && !m.AllowReversed {
		return model.Flight{}, fmt.Errorf("%w: launch angle %.4f rad gives negative air time %v", ErrInvalidPhysicsInput, f.LaunchAngle, f.AirTime)
	}
	f.Range = f.ExitVelocity * math.Cos(f.LaunchAngle) * f.AirTime
	f.Bearing = toDegrees(o.Yaw)

	if !finite(f.Range) || !finite(f.AirTime) {
		return model.Flight{}, fmt.Errorf("%w: flight produced non-finite range", ErrInvalidPhysicsInput)
	}
	return f, nil
}

// ComputeHit offsets source by the flight range along the flight bearing.
func (m TrajectoryModel) ComputeHit(source *model.LatLng, force, mass float64, o model.Orientation) (model.LatLng, model.Flight, error) {
	if source == nil {
		return model.LatLng{}, model.Flight{}, ErrMissingLocation
	}
	flight, err := m.ComputeFlight(force, mass, o)
	if err != nil {
		return model.LatLng{}, model.Flight{}, err
	}
	return ComputeOffset(*source, flight.Range, flight.Bearing), flight, nil
}

// ComputeHit evaluates the default strict TrajectoryModel.
func ComputeHit(source *model.LatLng, force, mass float64, o model.Orientation) (model.LatLng, error) {
	hit, _, err := NewTrajectoryModel().ComputeHit(source, force, mass, o)
	return hit, err
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
