// Package metrics derives diagnostics from completed simulation frames and
// exports stage timings to Prometheus.
package metrics

import "github.com/san-kum/sphfluid/internal/fluid"

// Metric accumulates one scalar over observed frames.
type Metric interface {
	Name() string
	Observe(stats fluid.FrameStats, particles []fluid.Particle)
	Value() float64
	Reset()
}

// Default returns the standard metric set.
func Default(restDensity, speedLimit float64) []Metric {
	return []Metric{
		NewKineticEnergy(),
		NewMaxSpeed(),
		NewDensityError(restDensity),
		NewStability(speedLimit),
	}
}
