// Package controls defines the tunable parameter set exposed by the
// interactive front ends: viscosity, vertical gravity and the horizontal
// bounds extents.
package controls

import (
	"fmt"
	"math"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// Control is one slider bound to a Params field.
type Control struct {
	Name     string
	Min, Max float64
	Step     float64
	Get      func(fluid.Params) float64
	Set      func(*fluid.Params, float64)
}

// Clamp limits v to [Min, Max].
func (c Control) Clamp(v float64) float64 {
	return math.Max(c.Min, math.Min(c.Max, v))
}

// Nudge returns p with the control moved by steps increments, clamped.
func (c Control) Nudge(p fluid.Params, steps float64) fluid.Params {
	c.Set(&p, c.Clamp(c.Get(p)+steps*c.Step))
	return p
}

// With returns p with the control set to v, clamped.
func (c Control) With(p fluid.Params, v float64) fluid.Params {
	c.Set(&p, c.Clamp(v))
	return p
}

// Fraction is the control's position within its range, in [0, 1].
func (c Control) Fraction(p fluid.Params) float64 {
	if c.Max <= c.Min {
		return 0
	}
	return (c.Clamp(c.Get(p)) - c.Min) / (c.Max - c.Min)
}

func (c Control) Format(p fluid.Params) string {
	return fmt.Sprintf("%.2f", c.Get(p))
}

// Default is the stock slider set.
var Default = []Control{
	{
		Name: "viscosity", Min: 0, Max: 20, Step: 0.25,
		Get: func(p fluid.Params) float64 { return p.Viscosity },
		Set: func(p *fluid.Params, v float64) { p.Viscosity = v },
	},
	{
		Name: "gravity.y", Min: -30, Max: 0, Step: 0.5,
		Get: func(p fluid.Params) float64 { return p.Gravity[1] },
		Set: func(p *fluid.Params, v float64) { p.Gravity[1] = v },
	},
	{
		Name: "bounds.x", Min: 1, Max: 20, Step: 0.25,
		Get: func(p fluid.Params) float64 { return p.Bounds[0] },
		Set: func(p *fluid.Params, v float64) { p.Bounds[0] = v },
	},
	{
		Name: "bounds.z", Min: 1, Max: 20, Step: 0.25,
		Get: func(p fluid.Params) float64 { return p.Bounds[2] },
		Set: func(p *fluid.Params, v float64) { p.Bounds[2] = v },
	},
}

// Find returns the control named name.
func Find(name string) (Control, bool) {
	for _, c := range Default {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}
