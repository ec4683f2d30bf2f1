// Package chart computes the data behind the interactive topic charts.
package chart

import (
	"errors"
	"fmt"
	"math"
)

// Slider bounds for the normal distribution chart.
const (
	MinMean   = -10.0
	MaxMean   = 10.0
	MinStdDev = 0.5
	MaxStdDev = 5.0

	// DefaultSteps is the number of intervals between the curve's end points.
	DefaultSteps = 100
	maxSteps     = 2000

	// spread is how many standard deviations the curve extends each side of the mean.
	spread = 4
)

var ErrOutOfRange = errors.New("chart parameter out of range")

// Point is one (x, density) sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NormalPDF is the density of N(mean, stdDev²) at x.
func NormalPDF(x, mean, stdDev float64) float64 {
	variance := stdDev * stdDev
	return math.Exp(-(x-mean)*(x-mean)/(2*variance)) / math.Sqrt(2*math.Pi*variance)
}

// NormalCurve samples the density over [mean-4σ, mean+4σ] in steps equal
// intervals, returning steps+1 points including both ends. steps <= 0 uses DefaultSteps.
func NormalCurve(mean, stdDev float64, steps int) ([]Point, error) {
	if math.IsNaN(mean) || mean < MinMean || mean > MaxMean {
		return nil, fmt.Errorf("%w: mean %v not in [%v, %v]", ErrOutOfRange, mean, MinMean, MaxMean)
	}
	if math.IsNaN(stdDev) || stdDev < MinStdDev || stdDev > MaxStdDev {
		return nil, fmt.Errorf("%w: standard deviation %v not in [%v, %v]", ErrOutOfRange, stdDev, MinStdDev, MaxStdDev)
	}
	if steps <= 0 {
		steps = DefaultSteps
	}
	if steps > maxSteps {
		return nil, fmt.Errorf("%w: %d steps exceeds %d", ErrOutOfRange, steps, maxSteps)
	}

	lo := mean - spread*stdDev
	width := 2 * spread * stdDev

	points := make([]Point, steps+1)
	for i := range points {
		x := lo + width*float64(i)/float64(steps)
		points[i] = Point{X: x, Y: NormalPDF(x, mean, stdDev)}
	}
	return points, nil
}
