package core

import (
	"math"

	"github.com/bunchim/archer/model"
)

// AccelUnitConversion scales raw armband accelerometer units to the
// linear-acceleration units used by the sample buffer.
const AccelUnitConversion = 0.98 / 1000

// Gravity returns the unit gravity direction in the armband frame for the
// rotation q.
func Gravity(q model.Quaternion) model.Vector3 {
	return model.Vector3{
		X: 2 * (q.X*q.Z - q.W*q.Y),
		Y: 2 * (q.W*q.X + q.Y*q.Z),
		Z: q.W*q.W - q.X*q.X - q.Y*q.Y + q.Z*q.Z,
	}
}

// LinearAcceleration removes gravity from a raw reading and converts units.
// A missing input yields the zero vector.
func LinearAcceleration(raw, gravity *model.Vector3) model.Vector3 {
	if raw == nil || gravity == nil {
		return model.Vector3{}
	}
	return raw.Sub(*gravity).Scale(AccelUnitConversion)
}

// Roll returns the rotation about the x axis in radians.
func Roll(q model.Quaternion) float64 {
	return math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))
}

// Pitch returns the rotation about the y axis in radians.
func Pitch(q model.Quaternion) float64 {
	s := 2 * (q.W*q.Y - q.Z*q.X)
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return math.Asin(s)
}

// Yaw returns the rotation about the z axis in radians.
func Yaw(q model.Quaternion) float64 {
	return math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
}

// EulerAngles converts q to yaw/pitch/roll. When the armband is worn with
// its x axis toward the elbow, roll and pitch are negated so that they
// read the same as a wrist-facing band.
func EulerAngles(q model.Quaternion, dir model.XDirection) model.Orientation {
	o := model.Orientation{Yaw: Yaw(q), Pitch: Pitch(q), Roll: Roll(q)}
	if dir == model.XDirectionTowardElbow {
		o.Roll = -o.Roll
		o.Pitch = -o.Pitch
	}
	return o
}
