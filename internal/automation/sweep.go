package automation

import (
	"context"
	"fmt"

	"github.com/san-kum/sphfluid/internal/fluid"
	"github.com/san-kum/sphfluid/internal/metrics"
)

// ParameterSweep runs a fresh simulation for each value of one parameter.
type ParameterSweep struct {
	Param    string
	Min, Max float64
	Steps    int
	Frames   int
}

type SweepResult struct {
	Value          float64 `csv:"value"`
	KineticEnergy  float64 `csv:"kinetic_energy"`
	MaxSpeed       float64 `csv:"max_speed"`
	DensityError   float64 `csv:"density_error"`
	Stability      float64 `csv:"stability"`
	FinalFrameTime float64 `csv:"final_frame_seconds"`
}

// Factory builds an initialised simulation for one sweep value. It must
// register obs as a frame observer.
type Factory func(ctx context.Context, p fluid.Params, obs fluid.Observer) (*fluid.Simulation, error)

// Values lists the swept parameter values, evenly spaced and inclusive.
func (s *ParameterSweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.Steps-1)
	vals := make([]float64, s.Steps)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	return vals
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, base fluid.Params, build Factory) ([]SweepResult, error) {
	if sweep.Frames < 1 {
		return nil, fmt.Errorf("sweep: frames must be at least 1")
	}

	var results []SweepResult
	for _, v := range sweep.Values() {
		p, err := base.Apply(map[string]any{sweep.Param: v})
		if err != nil {
			return results, err
		}

		rec := metrics.NewRecorder(1, metrics.Default(p.RestDensity, p.Bounds[1]/p.DeltaTime)...)
		sim, err := build(ctx, p, rec)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}

		for i := 0; i < sweep.Frames; i++ {
			if _, err := sim.Update(ctx, fluid.ExternalForce{}); err != nil {
				sim.Teardown()
				return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
			}
		}
		sim.Teardown()

		vals := rec.Values()
		last, _ := rec.Last()
		results = append(results, SweepResult{
			Value:          v,
			KineticEnergy:  vals["kinetic_energy"],
			MaxSpeed:       vals["max_speed"],
			DensityError:   vals["density_error"],
			Stability:      vals["stability"],
			FinalFrameTime: last.FrameSeconds,
		})
	}
	return results, nil
}
