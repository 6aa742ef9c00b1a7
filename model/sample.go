package model

// Timestamps on samples are monotonic milliseconds as delivered by the
// device SDK. Only differences between them are meaningful.

// Orientation is a yaw/pitch/roll estimate in radians.
type Orientation struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// OrientationSample is an Orientation stamped with its arrival time.
type OrientationSample struct {
	Orientation
	Timestamp int64 `json:"timestamp"`
}

// AccelerationSample pairs a raw accelerometer reading with the
// gravity-compensated linear acceleration derived from it.
type AccelerationSample struct {
	Raw       Vector3 `json:"raw"`
	Linear    Vector3 `json:"linear"`
	Timestamp int64   `json:"timestamp"`
}
