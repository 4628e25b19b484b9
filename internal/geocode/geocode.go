// Package geocode resolves coordinates to human-readable addresses.
package geocode

import (
	"context"
	"errors"
)

// ErrNotFound signals that no address could be resolved for the coordinates.
var ErrNotFound = errors.New("geocode: address not found")

// Geocoder performs reverse geocoding. Implementations return ErrNotFound when
// the provider has no match; transport failures come back as other errors.
// Callers treat both the same way and never retry automatically.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// ValidCoordinates reports whether lat/lon lie within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
