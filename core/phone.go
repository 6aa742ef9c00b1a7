package core

import (
	"math"

	"github.com/bunchim/archer/model"
)

// freeFallThreshold rejects accelerometer readings weaker than 1% of g,
// where the gravity direction is meaningless.
const freeFallThreshold = StandardGravity * 0.01

// DeviceOrientation computes the phone's azimuth/pitch/roll from its
// accelerometer (gravity) and magnetometer readings, both in the phone
// frame. Azimuth is returned as Yaw. ok is false when the readings cannot
// define a rotation (free fall, or a field parallel to gravity).
func DeviceOrientation(gravity, geomagnetic model.Vector3) (model.Orientation, bool) {
	ax, ay, az := gravity.X, gravity.Y, gravity.Z
	if ax*ax+ay*ay+az*az < freeFallThreshold*freeFallThreshold {
		return model.Orientation{}, false
	}
	ex, ey, ez := geomagnetic.X, geomagnetic.Y, geomagnetic.Z

	// East = field x gravity.
	hx := ey*az - ez*ay
	hy := ez*ax - ex*az
	hz := ex*ay - ey*ax
	normH := math.Sqrt(hx*hx + hy*hy + hz*hz)
	if normH < 0.1 {
		return model.Orientation{}, false
	}
	hx, hy, hz = hx/normH, hy/normH, hz/normH

	invA := 1 / math.Sqrt(ax*ax+ay*ay+az*az)
	ax, ay, az = ax*invA, ay*invA, az*invA

	// North = gravity x east; only its y component is needed.
	my := az*hx - ax*hz

	// Row-major rotation matrix rows: east, north, up.
	// azimuth = atan2(R[1], R[4]), pitch = asin(-R[7]), roll = atan2(-R[6], R[8])
	return model.Orientation{
		Yaw:   math.Atan2(hy, my),
		Pitch: math.Asin(clamp(-ay, -1, 1)),
		Roll:  math.Atan2(-ax, az),
	}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
