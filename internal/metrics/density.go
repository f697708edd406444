package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// DensityStats summarises the density field of one frame.
type DensityStats struct {
	Mean, StdDev, Min, Max float64
}

// Densities copies the per-particle densities into buf, growing it as needed.
func Densities(particles []fluid.Particle, buf []float64) []float64 {
	buf = buf[:0]
	for i := range particles {
		buf = append(buf, float64(particles[i].Density))
	}
	return buf
}

func DensityStatsOf(densities []float64) DensityStats {
	if len(densities) == 0 {
		return DensityStats{}
	}
	mean, std := stat.MeanStdDev(densities, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return DensityStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(densities),
		Max:    floats.Max(densities),
	}
}

// DensityError is the mean relative deviation of the average density from
// the rest density, a measure of compressibility.
type DensityError struct {
	name    string
	rest    float64
	buf     []float64
	sum     float64
	samples int
}

func NewDensityError(restDensity float64) *DensityError {
	return &DensityError{name: "density_error", rest: restDensity}
}

func (d *DensityError) Name() string { return d.name }

func (d *DensityError) Observe(_ fluid.FrameStats, particles []fluid.Particle) {
	if d.rest == 0 || len(particles) == 0 {
		return
	}
	d.buf = Densities(particles, d.buf)
	d.sum += math.Abs(stat.Mean(d.buf, nil)-d.rest) / d.rest
	d.samples++
}

func (d *DensityError) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return d.sum / float64(d.samples)
}

func (d *DensityError) Reset() {
	d.sum = 0
	d.samples = 0
}
