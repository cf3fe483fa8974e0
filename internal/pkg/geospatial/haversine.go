// Package geospatial holds the small amount of spherical math used for
// nearby-bench searches.
package geospatial

import "math"

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// Box is a lat/lng rectangle.
type Box struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns a box enclosing every point within radiusMeters of
// (lat, lng). It is a cheap prefilter for Haversine. Near the poles, where
// a degree of longitude shrinks to nothing, the box spans all longitudes.
// Boxes crossing the antimeridian are not split.
func BoundingBox(lat, lng, radiusMeters float64) Box {
	latDelta := radiusMeters / metersPerDegree
	box := Box{
		MinLat: math.Max(lat-latDelta, -90),
		MaxLat: math.Min(lat+latDelta, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	if cos := math.Cos(toRad(lat)); cos > 1e-6 {
		lngDelta := radiusMeters / (metersPerDegree * cos)
		if lngDelta < 180 {
			box.MinLng = lng - lngDelta
			box.MaxLng = lng + lngDelta
		}
	}
	return box
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
