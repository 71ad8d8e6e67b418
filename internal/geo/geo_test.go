package geo

import (
	"errors"
	"math"
	"testing"
)

func TestDistanceKnownPair(t *testing.T) {
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}
	d, err := Distance(paris, london)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d < 340 || d > 348 {
		t.Fatalf("paris-london distance = %.2f km, want ~344", d)
	}
}

func TestDistanceZeroAndSymmetric(t *testing.T) {
	a := Point{Lat: 52.52, Lng: 13.405}
	b := Point{Lat: 48.1351, Lng: 11.582}
	if d, _ := Distance(a, a); d != 0 {
		t.Fatalf("self distance = %v, want 0", d)
	}
	ab, _ := Distance(a, b)
	ba, _ := Distance(b, a)
	if ab != ba {
		t.Fatalf("asymmetric distance: %v vs %v", ab, ba)
	}
}

func TestDistanceInvalidCoordinate(t *testing.T) {
	good := Point{Lat: 10, Lng: 10}
	cases := []Point{
		{Lat: 91, Lng: 0},
		{Lat: -90.0001, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: 0, Lng: -180.5},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	}
	for _, bad := range cases {
		if _, err := Distance(good, bad); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("Distance(%v): err = %v, want ErrInvalidCoordinate", bad, err)
		}
		if _, err := Distance(bad, good); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("Distance(%v, good): err = %v, want ErrInvalidCoordinate", bad, err)
		}
	}
}

func TestMatrix(t *testing.T) {
	pts := []Point{
		{Lat: 52.52, Lng: 13.405},
		{Lat: 53.5511, Lng: 9.9937},
		{Lat: 50.1109, Lng: 8.6821},
	}
	m, err := Matrix(pts)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("matrix size = %d, want 3", len(m))
	}
	for i := range m {
		if m[i][i] != 0 {
			t.Fatalf("diagonal [%d][%d] = %v, want 0", i, i, m[i][i])
		}
		for j := range m {
			if m[i][j] != m[j][i] {
				t.Fatalf("matrix not symmetric at [%d][%d]", i, j)
			}
			if i != j && m[i][j] <= 0 {
				t.Fatalf("distance [%d][%d] = %v, want > 0", i, j, m[i][j])
			}
		}
	}
}

func TestMatrixInvalidPoint(t *testing.T) {
	pts := []Point{{Lat: 1, Lng: 1}, {Lat: 200, Lng: 0}}
	if _, err := Matrix(pts); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("matrix err = %v, want ErrInvalidCoordinate", err)
	}
}
