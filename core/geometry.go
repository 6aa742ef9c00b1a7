package core

import (
	"math"

	"github.com/bunchim/archer/model"
)

// EarthRadiusMeters is the mean Earth radius used for all spherical
// calculations (metres).
const EarthRadiusMeters = 6371009.0

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// ComputeOffset returns the point reached by travelling distance metres
// from `from` along the great circle with the given initial heading
// (degrees clockwise from north). A negative distance travels along the
// reversed heading.
func ComputeOffset(from model.LatLng, distance, heading float64) model.LatLng {
	angular := distance / EarthRadiusMeters
	h := toRadians(heading)
	fromLat := toRadians(from.Latitude)
	fromLng := toRadians(from.Longitude)

	cosDist := math.Cos(angular)
	sinDist := math.Sin(angular)
	sinFromLat := math.Sin(fromLat)
	cosFromLat := math.Cos(fromLat)

	sinLat := cosDist*sinFromLat + sinDist*cosFromLat*math.Cos(h)
	dLng := math.Atan2(sinDist*cosFromLat*math.Sin(h), cosDist-sinFromLat*sinLat)

	return model.LatLng{
		Latitude:  toDegrees(math.Asin(sinLat)),
		Longitude: wrap(toDegrees(fromLng+dLng), -180, 180),
	}
}

// DistanceBetween returns the great-circle distance between a and b in metres.
func DistanceBetween(a, b model.LatLng) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLng := toRadians(a.Longitude - b.Longitude)

	h := hav(lat1-lat2) + hav(dLng)*math.Cos(lat1)*math.Cos(lat2)
	if h > 1 {
		h = 1
	}
	return 2 * math.Asin(math.Sqrt(h)) * EarthRadiusMeters
}

// Heading returns the initial great-circle bearing from `from` to `to` in
// degrees, normalised to [-180, 180).
func Heading(from, to model.LatLng) float64 {
	fromLat := toRadians(from.Latitude)
	toLat := toRadians(to.Latitude)
	dLng := toRadians(to.Longitude - from.Longitude)

	h := math.Atan2(
		math.Sin(dLng)*math.Cos(toLat),
		math.Cos(fromLat)*math.Sin(toLat)-math.Sin(fromLat)*math.Cos(toLat)*math.Cos(dLng),
	)
	return wrap(toDegrees(h), -180, 180)
}

func hav(x float64) float64 {
	s := math.Sin(x * 0.5)
	return s * s
}

// wrap maps n into [lo, hi).
func wrap(n, lo, hi float64) float64 {
	if n >= lo && n < hi {
		return n
	}
	span := hi - lo
	m := math.Mod(n-lo, span)
	if m < 0 {
		m += span
	}
	return m + lo
}
