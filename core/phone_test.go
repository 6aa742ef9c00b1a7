package core

import (
	"math"
	"testing"

	"github.com/bunchim/archer/model"
)

func TestDeviceOrientation_FlatFacingNorth(t *testing.T) {
	o, ok := DeviceOrientation(model.Vector3{Z: 9.81}, model.Vector3{Y: 20, Z: -40})
	if !ok {
		t.Fatalf("expected a valid orientation")
	}
	if math.Abs(o.Yaw) > 1e-12 || math.Abs(o.Pitch) > 1e-12 || math.Abs(o.Roll) > 1e-12 {
		t.Fatalf("orientation = %+v, want all zero", o)
	}
}

func TestDeviceOrientation_FacingEast(t *testing.T) {
	// Phone flat, top pointing east: magnetic north lies along -x.
	o, ok := DeviceOrientation(model.Vector3{Z: 9.81}, model.Vector3{X: -20, Z: -40})
	if !ok {
		t.Fatalf("expected a valid orientation")
	}
	if math.Abs(o.Yaw-math.Pi/2) > 1e-12 {
		t.Fatalf("azimuth = %v, want π/2", o.Yaw)
	}
}

func TestDeviceOrientation_Degenerate(t *testing.T) {
	if _, ok := DeviceOrientation(model.Vector3{}, model.Vector3{Y: 20}); ok {
		t.Fatalf("free fall should not produce an orientation")
	}
	if _, ok := DeviceOrientation(model.Vector3{Z: 9.81}, model.Vector3{Z: -40}); ok {
		t.Fatalf("field parallel to gravity should not produce an orientation")
	}
}
