// Package probe turns pointer input into the external force sample applied
// to the fluid for one frame.
//
// The pointer ray is intersected with a vertical plane through the origin
// facing the camera. The intersection becomes the force point; the held
// button picks the sign of the magnitude.
package probe

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphfluid/internal/camera"
	"github.com/san-kum/sphfluid/internal/fluid"
)

// DefaultStrength matches the stock click-and-drag force.
const DefaultStrength = 5

const parallelEpsilon = 1e-6

// Input is the pointer state for one frame.
type Input struct {
	Primary   bool
	Secondary bool
	Ray       camera.Ray
	// Forward is the camera view direction.
	Forward r3.Vec
}

type Probe struct {
	Strength float64
}

func New(strength float64) *Probe {
	return &Probe{Strength: strength}
}

// Sample returns the force for this frame, or the zero sample when no button
// is held or the ray does not meet the plane in front of its origin.
func (p *Probe) Sample(in Input) fluid.ExternalForce {
	var magnitude float64
	switch {
	case in.Primary:
		magnitude = p.Strength
	case in.Secondary:
		magnitude = -p.Strength
	default:
		return fluid.ExternalForce{}
	}

	point, ok := Intersect(in.Ray, in.Forward)
	if !ok {
		return fluid.ExternalForce{}
	}
	return fluid.ExternalForce{
		Point:     [3]float32{float32(point.X), float32(point.Y), float32(point.Z)},
		Magnitude: float32(magnitude),
	}
}

// PlaneNormal flattens forward onto the horizontal plane. ok is false when
// the camera looks straight up or down.
func PlaneNormal(forward r3.Vec) (r3.Vec, bool) {
	n := r3.Vec{X: forward.X, Z: forward.Z}
	if r3.Norm(n) < parallelEpsilon {
		return r3.Vec{}, false
	}
	return r3.Unit(n), true
}

// Intersect finds where ray meets the plane through the origin with normal
// derived from forward.
func Intersect(ray camera.Ray, forward r3.Vec) (r3.Vec, bool) {
	n, ok := PlaneNormal(forward)
	if !ok {
		return r3.Vec{}, false
	}
	denom := r3.Dot(n, ray.Dir)
	if math.Abs(denom) < parallelEpsilon {
		return r3.Vec{}, false
	}
	t := -r3.Dot(n, ray.Origin) / denom
	if t < 0 {
		return r3.Vec{}, false
	}
	return ray.At(t), true
}
