package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinate reports a latitude/longitude outside WGS84 bounds or a
// non-finite value.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is finite and within [-90,90] / [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Validate returns ErrInvalidCoordinate wrapped with the offending values
// when p is not a usable coordinate.
func Validate(p Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinate, p.Lat, p.Lng)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	return distance(a, b), nil
}

func distance(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Matrix returns the symmetric pairwise distance matrix for points, in
// kilometers. Row i column j is the distance from points[i] to points[j].
func Matrix(points []Point) ([][]float64, error) {
	for i, p := range points {
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	m := make([][]float64, len(points))
	for i := range m {
		m[i] = make([]float64, len(points))
	}
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := distance(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m, nil
}
