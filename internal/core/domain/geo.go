package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks latitude and longitude ranges. NaN and infinities are
// rejected before the range checks, which NaN would otherwise pass.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("must be a finite number, got %g", p.Lat)}
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return &ValidationError{Field: "lng", Message: fmt.Sprintf("must be a finite number, got %g", p.Lng)}
	}
	if p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("must be between -90 and 90, got %g", p.Lat)}
	}
	if p.Lng < -180 || p.Lng > 180 {
		return &ValidationError{Field: "lng", Message: fmt.Sprintf("must be between -180 and 180, got %g", p.Lng)}
	}
	return nil
}

// MapView is the visible map viewport.
type MapView struct {
	Center GeoPoint `json:"center"`
	Zoom   int      `json:"zoom"`
}

// DefaultMapView centres on Switzerland.
var DefaultMapView = MapView{Center: GeoPoint{Lat: 46.8182, Lng: 8.2275}, Zoom: 8}

// LocatedZoom is used once the user's position is known.
const LocatedZoom = 14
