package wind

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyTable    = errors.New("direction table is empty")
	ErrTableOrdering = errors.New("direction table thresholds must be ascending")
)

// Threshold is one vane bucket: any voltage below Below (and at or above the
// previous entry) reads as Heading.
type Threshold struct {
	Below   float64
	Heading float64
}

// DefaultTable is based on the sensor datasheet voltages for each direction
// with the vane wired as a divider on 5V. Thresholds sit midway between
// neighbouring datasheet values.
var DefaultTable = []Threshold{
	{0.365, 112.5},
	{0.430, 67.5},
	{0.535, 90.0},
	{0.760, 157.5},
	{1.045, 135.0},
	{1.295, 202.5},
	{1.690, 180.0},
	{2.115, 22.5},
	{2.590, 45.0},
	{3.005, 247.5},
	{3.225, 225.0},
	{3.635, 337.5},
	{3.940, 0},
	{4.185, 292.5},
	{4.475, 315.0},
}

// DefaultHeading is reported for anything at or above the last threshold.
const DefaultHeading = 270.0

type Resolver struct {
	table []Threshold
	def   float64
}

func NewResolver(table []Threshold, def float64) (*Resolver, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	for i := 1; i < len(table); i++ {
		if !(table[i].Below > table[i-1].Below) {
			return nil, fmt.Errorf("%w: entry %d (%v) after %v", ErrTableOrdering, i, table[i].Below, table[i-1].Below)
		}
	}
	t := make([]Threshold, len(table))
	copy(t, table)
	return &Resolver{table: t, def: def}, nil
}

// DefaultResolver uses the datasheet calibration.
func DefaultResolver() *Resolver {
	r, _ := NewResolver(DefaultTable, DefaultHeading)
	return r
}

// Resolve maps a vane voltage to a heading in degrees.
func (r *Resolver) Resolve(volts float64) float64 {
	for _, t := range r.table {
		if volts < t.Below {
			return t.Heading
		}
	}
	return r.def
}

var points = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassPoint names the nearest of the 16 points for a heading.
func CompassPoint(heading float64) string {
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	return points[int(math.Round(h/22.5))%16]
}
