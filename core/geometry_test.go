package core

import (
	"math"
	"testing"

	"github.com/bunchim/archer/model"
)

func TestComputeOffset_North(t *testing.T) {
	from := model.LatLng{Latitude: 10, Longitude: 20}
	got := ComputeOffset(from, 1000, 0)

	wantLat := 10 + toDegrees(1000/EarthRadiusMeters)
	if math.Abs(got.Latitude-wantLat) > 1e-9 {
		t.Fatalf("latitude = %v, want %v", got.Latitude, wantLat)
	}
	if math.Abs(got.Longitude-20) > 1e-9 {
		t.Fatalf("longitude = %v, want 20", got.Longitude)
	}
}

func TestComputeOffset_RoundTripsDistanceAndHeading(t *testing.T) {
	from := model.LatLng{Latitude: 47.6, Longitude: -122.3}
	for _, heading := range []float64{0, 45, 90, 135, -90, -179} {
		to := ComputeOffset(from, 2500, heading)
		if d := DistanceBetween(from, to); math.Abs(d-2500) > 1e-6 {
			t.Errorf("heading %v: distance = %v, want 2500", heading, d)
		}
		if h := Heading(from, to); math.Abs(h-heading) > 1e-6 {
			t.Errorf("heading %v: recovered heading = %v", heading, h)
		}
	}
}

func TestComputeOffset_NegativeDistanceReversesBearing(t *testing.T) {
	from := model.LatLng{Latitude: 0, Longitude: 0}
	fwd := ComputeOffset(from, -1000, 90)
	back := ComputeOffset(from, 1000, -90)

	if math.Abs(fwd.Latitude-back.Latitude) > 1e-9 || math.Abs(fwd.Longitude-back.Longitude) > 1e-9 {
		t.Fatalf("negative offset %v != reversed offset %v", fwd, back)
	}
	if fwd.Longitude >= 0 {
		t.Fatalf("expected westward displacement, got %v", fwd)
	}
}

func TestComputeOffset_WrapsAntimeridian(t *testing.T) {
	from := model.LatLng{Latitude: 0, Longitude: 179.999}
	got := ComputeOffset(from, 1000, 90)
	if got.Longitude > -179 || got.Longitude < -180 {
		t.Fatalf("expected longitude wrapped to just past -180, got %v", got.Longitude)
	}
}

func TestDistanceBetween_SamePoint(t *testing.T) {
	p := model.LatLng{Latitude: 51.5, Longitude: -0.12}
	if d := DistanceBetween(p, p); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}
}
