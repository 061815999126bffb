package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MetersPerDegree is the length of one degree of latitude used to convert
// padding radii into degree deltas.
const MetersPerDegree = 111320.0

// ErrDegenerateBox is returned by BoundingBox.Validate when a box has no area
// or lies outside WGS-84 bounds.
var ErrDegenerateBox = errors.New("degenerate bounding box")

// BoundingBox is a rectangular WGS-84 region.
//
// A valid box satisfies MinLon < MaxLon and MinLat < MaxLat. Boxes produced by
// BoxAround and Pad with a positive radius are always valid.
//
// Example:
//
//	box := model.BoxAround(48.8584, 2.2945, 25)
//	fmt.Println(box) // "minLon,minLat,maxLon,maxLat" with 6 decimals
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// BoxAround synthesizes a box of radiusMeters around a point.
//
// The longitude delta is widened by 1/cos(lat) so the box stays roughly square
// on the ground.
func BoxAround(lat, lon, radiusMeters float64) BoundingBox {
	dLat, dLon := degreeDeltas(lat, radiusMeters)
	return BoundingBox{
		MinLon: lon - dLon,
		MinLat: lat - dLat,
		MaxLon: lon + dLon,
		MaxLat: lat + dLat,
	}
}

// Pad expands the box symmetrically by radiusMeters, converting the radius at
// the latitude of the box center.
func (b BoundingBox) Pad(radiusMeters float64) BoundingBox {
	_, centerLat := b.Center()
	dLat, dLon := degreeDeltas(centerLat, radiusMeters)
	return BoundingBox{
		MinLon: b.MinLon - dLon,
		MinLat: b.MinLat - dLat,
		MaxLon: b.MaxLon + dLon,
		MaxLat: b.MaxLat + dLat,
	}
}

// Center returns the midpoint of the box as (lon, lat).
func (b BoundingBox) Center() (lon, lat float64) {
	return (b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2
}

// Validate reports whether the box is usable for a provider query.
func (b BoundingBox) Validate() error {
	if !validLat(b.MinLat) || !validLat(b.MaxLat) || !validLon(b.MinLon) || !validLon(b.MaxLon) {
		return fmt.Errorf("%w: %s out of range", ErrDegenerateBox, b)
	}
	if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
		return fmt.Errorf("%w: %s", ErrDegenerateBox, b)
	}
	return nil
}

// String renders the box in the provider's "minLon,minLat,maxLon,maxLat" form.
func (b BoundingBox) String() string {
	return formatCoord(b.MinLon) + "," + formatCoord(b.MinLat) + "," +
		formatCoord(b.MaxLon) + "," + formatCoord(b.MaxLat)
}

// GeocodeResult is a single candidate returned by a geocoder.
type GeocodeResult struct {
	Lon         float64      `json:"lon"`
	Lat         float64      `json:"lat"`
	BBox        *BoundingBox `json:"bbox,omitempty"`
	Class       string       `json:"class"`
	Type        string       `json:"type"`
	DisplayName string       `json:"display_name"`

	// Rank is the position the provider returned the candidate in (0 = first).
	Rank int `json:"rank"`
}

// IsHighway reports whether the candidate is tagged as a road.
func (r GeocodeResult) IsHighway() bool {
	return r.Class == "highway"
}

func degreeDeltas(lat, radiusMeters float64) (dLat, dLon float64) {
	dLat = radiusMeters / MetersPerDegree
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-9 {
		cos = 1e-9
	}
	dLon = radiusMeters / (MetersPerDegree * cos)
	return dLat, dLon
}

func validLat(v float64) bool { return v >= -90 && v <= 90 && !math.IsNaN(v) }
func validLon(v float64) bool { return v >= -180 && v <= 180 && !math.IsNaN(v) }

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
