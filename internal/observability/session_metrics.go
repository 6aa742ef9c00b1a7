package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bunchim/archer/model"
)

// Shot outcome labels.
const (
	OutcomeHit    = "hit"
	OutcomeFailed = "failed"
)

// SessionCollector exposes gesture and shot metrics for a session.
type SessionCollector struct {
	gatherer prometheus.Gatherer

	PosesTotal        *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	ShotsTotal        *prometheus.CounterVec
	FlightRange       prometheus.Histogram
	ShotDuration      prometheus.Histogram
	BufferedSamples   prometheus.Gauge
	DeviceConnected   prometheus.Gauge
	FlightStateGauge  prometheus.Gauge
	DisplacementRatio prometheus.Gauge
}

// NewSessionCollector registers session metrics against the provided registerer.
func NewSessionCollector(reg prometheus.Registerer) (*SessionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := gathererFor(reg)

	poses, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archer_poses_total",
		Help: "Pose events received, labeled by pose.",
	}, []string{"pose"}), "archer_poses_total")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archer_state_transitions_total",
		Help: "Flight state transitions, labeled by source and destination state.",
	}, []string{"from", "to"}), "archer_state_transitions_total")
	if err != nil {
		return nil, err
	}

	shots, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archer_shots_total",
		Help: "Completed flights, labeled by outcome (hit or failed).",
	}, []string{"outcome"}), "archer_shots_total")
	if err != nil {
		return nil, err
	}

	flightRange, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archer_flight_range_meters",
		Help:    "Absolute horizontal range of computed flights in metres.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	}), "archer_flight_range_meters")
	if err != nil {
		return nil, err
	}

	shotDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "archer_shot_computation_duration_seconds",
		Help:    "Time spent computing a shot after entering FLYING.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "archer_shot_computation_duration_seconds")
	if err != nil {
		return nil, err
	}

	buffered, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "archer_sample_buffer_samples",
		Help: "Acceleration samples currently buffered while PULLING.",
	}), "archer_sample_buffer_samples")
	if err != nil {
		return nil, err
	}

	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "archer_device_connected",
		Help: "1 when the armband reports connected, 0 otherwise.",
	}), "archer_device_connected")
	if err != nil {
		return nil, err
	}

	state, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "archer_flight_state",
		Help: "Current flight state (0 WAITING, 1 PULLING, 2 FLYING).",
	}), "archer_flight_state")
	if err != nil {
		return nil, err
	}

	ratio, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "archer_displacement_smoothing_ratio",
		Help: "Smoothed over raw displacement estimate of the last shot.",
	}), "archer_displacement_smoothing_ratio")
	if err != nil {
		return nil, err
	}

	return &SessionCollector{
		gatherer:          gatherer,
		PosesTotal:        poses,
		TransitionsTotal:  transitions,
		ShotsTotal:        shots,
		FlightRange:       flightRange,
		ShotDuration:      shotDuration,
		BufferedSamples:   buffered,
		DeviceConnected:   connected,
		FlightStateGauge:  state,
		DisplacementRatio: ratio,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SessionCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObservePose counts one pose event.
func (c *SessionCollector) ObservePose(p model.Pose) {
	if c == nil || c.PosesTotal == nil {
		return
	}
	c.PosesTotal.WithLabelValues(p.String()).Inc()
}

// ObserveTransition counts a state change and updates the state gauge.
func (c *SessionCollector) ObserveTransition(from, to model.FlightState) {
	if c == nil {
		return
	}
	if c.TransitionsTotal != nil {
		c.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	}
	if c.FlightStateGauge != nil {
		c.FlightStateGauge.Set(float64(to))
	}
}

// ObserveShot records a successful shot.
func (c *SessionCollector) ObserveShot(shot model.Shot, d time.Duration) {
	if c == nil {
		return
	}
	if c.ShotsTotal != nil {
		c.ShotsTotal.WithLabelValues(OutcomeHit).Inc()
	}
	if c.FlightRange != nil {
		r := shot.Flight.Range
		if r < 0 {
			r = -r
		}
		c.FlightRange.Observe(r)
	}
	if c.ShotDuration != nil {
		c.ShotDuration.Observe(d.Seconds())
	}
	if c.DisplacementRatio != nil && shot.RawDisplacement > 0 {
		c.DisplacementRatio.Set(shot.SmoothedDisplacement / shot.RawDisplacement)
	}
}

// ObserveShotFailure records a flight that could not produce a hit.
func (c *SessionCollector) ObserveShotFailure() {
	if c == nil || c.ShotsTotal == nil {
		return
	}
	c.ShotsTotal.WithLabelValues(OutcomeFailed).Inc()
}

// SetBufferedSamples updates the sample-buffer gauge.
func (c *SessionCollector) SetBufferedSamples(n int) {
	if c == nil || c.BufferedSamples == nil {
		return
	}
	c.BufferedSamples.Set(float64(n))
}

// SetDeviceConnected updates the device connection gauge.
func (c *SessionCollector) SetDeviceConnected(connected bool) {
	if c == nil || c.DeviceConnected == nil {
		return
	}
	if connected {
		c.DeviceConnected.Set(1)
		return
	}
	c.DeviceConnected.Set(0)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
