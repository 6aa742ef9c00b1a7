package core

import "github.com/bunchim/archer/model"

// SmoothingWindow is the trailing window used for the smoothed estimate.
const SmoothingWindow = 3

// Displacement is the diagnostic draw-length estimate from a pulling
// phase. It is reported alongside shots but never changes a trajectory.
type Displacement struct {
	Raw            model.Vector3
	Smoothed       model.Vector3
	RawLength      float64
	SmoothedLength float64
}

// EstimateDisplacement double-integrates the buffered linear accelerations
// twice: once as recorded and once after trailing moving-average smoothing.
func EstimateDisplacement(samples []model.AccelerationSample) Displacement {
	values := make([]model.Vector3, len(samples))
	times := make([]int64, len(samples))
	for i, s := range samples {
		values[i] = s.Linear
		times[i] = s.Timestamp
	}

	raw := integrate(values, times)
	smoothed := integrate(MovingAverage(values, SmoothingWindow), times)
	return Displacement{
		Raw:            raw,
		Smoothed:       smoothed,
		RawLength:      raw.Length(),
		SmoothedLength: smoothed.Length(),
	}
}

// Integrate returns the displacement obtained by integrating the linear
// accelerations to velocity and then to position.
func Integrate(samples []model.AccelerationSample) model.Vector3 {
	return EstimateDisplacement(samples).Raw
}

// integrate runs two sequential finite-difference passes, accel->velocity
// and velocity->position, using the actual inter-arrival times (ms) as dt.
// Out-of-order timestamps contribute nothing.
func integrate(accels []model.Vector3, times []int64) model.Vector3 {
	if len(accels) < 2 {
		return model.Vector3{}
	}

	velocities := make([]model.Vector3, len(accels))
	for i := 1; i < len(accels); i++ {
		dt := seconds(times[i] - times[i-1])
		velocities[i] = velocities[i-1].Add(accels[i].Scale(dt))
	}

	var pos model.Vector3
	for i := 1; i < len(velocities); i++ {
		dt := seconds(times[i] - times[i-1])
		pos = pos.Add(velocities[i].Scale(dt))
	}
	return pos
}

func seconds(ms int64) float64 {
	if ms <= 0 {
		return 0
	}
	return float64(ms) / 1000.0
}

// MovingAverage applies a trailing mean of `window` samples, clamped at the
// start of the sequence. Sequences shorter than the window, or a window
// below 2, are returned unchanged (as a copy).
func MovingAverage(values []model.Vector3, window int) []model.Vector3 {
	out := make([]model.Vector3, len(values))
	if window < 2 || len(values) < window {
		copy(out, values)
		return out
	}

	var sum model.Vector3
	for i, v := range values {
		sum = sum.Add(v)
		if i >= window {
			sum = sum.Sub(values[i-window])
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum.Scale(1 / float64(n))
	}
	return out
}
