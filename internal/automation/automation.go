// Package automation drives a simulation from scripted, frame-indexed
// events, and sweeps a parameter across a range of values.
package automation

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// Scenario is a scripted run: a fixed number of frames with events fired at
// given frame indices.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Preset      string  `yaml:"preset"`
	Frames      int     `yaml:"frames"`
	Events      []Event `yaml:"events"`
}

// Event fires at the start of frame Frame, before the frame's Update.
type Event struct {
	Frame      int            `yaml:"frame"`
	Reset      bool           `yaml:"reset"`
	Set        map[string]any `yaml:"set"`
	BoundsOpen *bool          `yaml:"bounds_open"`
	Force      *ForceEvent    `yaml:"force"`
}

// ForceEvent holds a probe sample for a number of frames.
type ForceEvent struct {
	Point     [3]float32 `yaml:"point,flow"`
	Magnitude float32    `yaml:"magnitude"`
	Frames    int        `yaml:"frames"`
}

// Simulation is the part of fluid.Simulation a scenario drives.
type Simulation interface {
	Apply(updates map[string]any) error
	Reset()
	BoundsOverride(open bool)
	Update(ctx context.Context, force fluid.ExternalForce) (fluid.FrameStats, error)
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(sc.Events, func(i, j int) bool { return sc.Events[i].Frame < sc.Events[j].Frame })
	return &sc, nil
}

func (s *Scenario) Validate() error {
	if s.Frames < 1 {
		return fmt.Errorf("scenario %q: frames must be at least 1", s.Name)
	}
	for i, ev := range s.Events {
		if ev.Frame < 0 || ev.Frame >= s.Frames {
			return fmt.Errorf("scenario %q: event %d at frame %d outside [0,%d)", s.Name, i, ev.Frame, s.Frames)
		}
		if ev.Force != nil && ev.Force.Frames < 1 {
			return fmt.Errorf("scenario %q: event %d force must last at least one frame", s.Name, i)
		}
	}
	return nil
}

// RunScenario plays the scenario against sim. onFrame, if set, is called
// after every frame.
func RunScenario(ctx context.Context, sc *Scenario, sim Simulation, log *zap.Logger, onFrame func(fluid.FrameStats)) error {
	if log == nil {
		log = zap.NewNop()
	}

	next := 0
	var force fluid.ExternalForce
	forceLeft := 0

	for frame := 0; frame < sc.Frames; frame++ {
		for next < len(sc.Events) && sc.Events[next].Frame == frame {
			ev := sc.Events[next]
			next++

			if len(ev.Set) > 0 {
				if err := sim.Apply(ev.Set); err != nil {
					return fmt.Errorf("frame %d: %w", frame, err)
				}
			}
			if ev.BoundsOpen != nil {
				sim.BoundsOverride(*ev.BoundsOpen)
			}
			if ev.Reset {
				sim.Reset()
			}
			if ev.Force != nil {
				force = fluid.ExternalForce{Point: ev.Force.Point, Magnitude: ev.Force.Magnitude}
				forceLeft = ev.Force.Frames
			}
			log.Debug("scenario event", zap.Int("frame", frame))
		}

		sample := fluid.ExternalForce{}
		if forceLeft > 0 {
			sample = force
			forceLeft--
		}

		stats, err := sim.Update(ctx, sample)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		if onFrame != nil {
			onFrame(stats)
		}
	}

	log.Info("scenario complete", zap.String("name", sc.Name), zap.Int("frames", sc.Frames))
	return nil
}
