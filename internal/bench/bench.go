// Package bench measures frame time across a sweep of particle counts.
//
// Each run resizes and reseeds the simulation, discards a number of settle
// frames, then times a fixed number of frames and appends one result line:
//
//	Particles: 1024, Frames: 2000, Total duration: 3.91, Avg. time per frame: 0.001955
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/sphfluid/internal/fluid"
)

type Schedule struct {
	Start        int
	Step         int
	Max          int
	Frames       int
	SettleFrames int
}

func (s Schedule) Validate() error {
	switch {
	case s.Start < 1:
		return errors.New("bench: start must be at least 1")
	case s.Step < 1:
		return errors.New("bench: step must be at least 1")
	case s.Max < s.Start:
		return errors.New("bench: max below start")
	case s.Frames < 1:
		return errors.New("bench: frames must be at least 1")
	case s.SettleFrames < 0:
		return errors.New("bench: settle frames must not be negative")
	}
	return nil
}

// Counts lists the particle counts the schedule visits.
func (s Schedule) Counts() []int {
	var counts []int
	for n := s.Start; n <= s.Max; n += s.Step {
		counts = append(counts, n)
	}
	return counts
}

type Result struct {
	Particles          int     `csv:"particles"`
	Frames             int     `csv:"frames"`
	TotalSeconds       float64 `csv:"total_seconds"`
	AvgFrameSeconds    float64 `csv:"avg_frame_seconds"`
	StdDevFrameSeconds float64 `csv:"stddev_frame_seconds"`
	DensitySeconds     float64 `csv:"density_seconds"`
	ForcesSeconds      float64 `csv:"forces_seconds"`
	IntegrateSeconds   float64 `csv:"integrate_seconds"`
}

// Line formats the result in the benchmark log format.
func (r Result) Line() string {
	return fmt.Sprintf("Particles: %d, Frames: %d, Total duration: %g, Avg. time per frame: %g",
		r.Particles, r.Frames, r.TotalSeconds, r.AvgFrameSeconds)
}

// Simulation is the part of fluid.Simulation the runner drives.
type Simulation interface {
	Apply(updates map[string]any) error
	Reset()
	Update(ctx context.Context, force fluid.ExternalForce) (fluid.FrameStats, error)
}

type Runner struct {
	Schedule Schedule
	// Log receives one line per completed run.
	Log    io.Writer
	Logger *zap.Logger
}

// Run executes the sweep. Results completed before an error are returned.
func (r *Runner) Run(ctx context.Context, sim Simulation) ([]Result, error) {
	if err := r.Schedule.Validate(); err != nil {
		return nil, err
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var results []Result
	for _, n := range r.Schedule.Counts() {
		res, err := r.runOne(ctx, sim, n)
		if err != nil {
			return results, fmt.Errorf("run with %d particles: %w", n, err)
		}
		results = append(results, res)

		if r.Log != nil {
			if _, err := fmt.Fprintln(r.Log, res.Line()); err != nil {
				return results, err
			}
		}
		log.Info("benchmark run complete",
			zap.Int("particles", n),
			zap.Float64("avg_frame_seconds", res.AvgFrameSeconds))
	}
	log.Info("testing complete", zap.Int("runs", len(results)))
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, sim Simulation, n int) (Result, error) {
	if err := sim.Apply(map[string]any{"particleCount": n}); err != nil {
		return Result{}, err
	}
	sim.Reset()

	for i := 0; i < r.Schedule.SettleFrames; i++ {
		if _, err := sim.Update(ctx, fluid.ExternalForce{}); err != nil {
			return Result{}, err
		}
	}

	frames := r.Schedule.Frames
	durations := make([]float64, 0, frames)
	var stages [3]time.Duration
	for i := 0; i < frames; i++ {
		start := time.Now()
		stats, err := sim.Update(ctx, fluid.ExternalForce{})
		if err != nil {
			return Result{}, err
		}
		durations = append(durations, time.Since(start).Seconds())
		for j, s := range fluid.Stages {
			stages[j] += stats.Stage(s)
		}
	}

	total := 0.0
	for _, d := range durations {
		total += d
	}
	_, std := stat.MeanStdDev(durations, nil)
	if frames < 2 {
		std = 0
	}
	return Result{
		Particles:          n,
		Frames:             frames,
		TotalSeconds:       total,
		AvgFrameSeconds:    total / float64(frames),
		StdDevFrameSeconds: std,
		DensitySeconds:     stages[0].Seconds() / float64(frames),
		ForcesSeconds:      stages[1].Seconds() / float64(frames),
		IntegrateSeconds:   stages[2].Seconds() / float64(frames),
	}, nil
}

func WriteCSV(w io.Writer, results []Result) error {
	return gocsv.Marshal(&results, w)
}

func ReadCSV(rd io.Reader) ([]Result, error) {
	var results []Result
	if err := gocsv.Unmarshal(rd, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Plot renders average frame time in milliseconds against the run index.
func Plot(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	data := make([]float64, len(results))
	for i, r := range results {
		data[i] = r.AvgFrameSeconds * 1000
	}
	caption := fmt.Sprintf("avg ms/frame, %d to %d particles", results[0].Particles, results[len(results)-1].Particles)
	return asciigraph.Plot(data, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption(caption))
}
