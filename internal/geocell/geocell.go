// Package geocell converts coordinates to fixed-precision geohash cells and
// expands a cell into its adjacent neighborhood.
package geocell

import (
	"errors"
	"fmt"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

// Precision is the fixed geohash length used for proximity cells
// (~4.9 km cell edge).
const Precision = 5

// ErrInvalidCoordinate reports a latitude/longitude outside the valid range.
// The codec never clamps; validated input should make this unreachable.
var ErrInvalidCoordinate = errors.New("geocell: coordinate out of range")

// Encode returns the geohash cell containing the coordinate at the given
// precision.
func Encode(lat, lon float64, precision int) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, lat, lon)
	}
	return geohash.EncodeWithPrecision(lat, lon, precision), nil
}

// Neighbors returns the eight cells adjacent to cell: N, S, E, W and the four
// diagonals. The origin cell is not included; callers wanting the full 3x3
// neighborhood add it themselves.
func Neighbors(cell string) []string {
	return geohash.CalculateAllAdjacent(cell)
}
