// Package camera provides an orbit camera for viewing the fluid volume and
// turning screen positions into pick rays.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxPitch keeps the camera off the poles, where the basis degenerates.
const maxPitch = math.Pi/2 - 0.01

var worldUp = r3.Vec{Y: 1}

// Ray is a half-line from Origin along the unit vector Dir.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Dir))
}

// Orbit circles a target point at a fixed distance.
type Orbit struct {
	Target   r3.Vec
	Yaw      float64
	Pitch    float64
	Distance float64

	// FOV is the vertical field of view in radians.
	FOV       float64
	Near, Far float64

	MinDistance, MaxDistance float64
}

// NewOrbit creates a camera looking at the origin from distance along +Z,
// slightly raised.
func NewOrbit(distance float64) *Orbit {
	return &Orbit{
		Pitch:       0.35,
		Distance:    distance,
		FOV:         math.Pi / 4,
		Near:        0.1,
		Far:         1000,
		MinDistance: 1,
		MaxDistance: 200,
	}
}

// Position returns the eye position in world space.
func (o *Orbit) Position() r3.Vec {
	cp := math.Cos(o.Pitch)
	offset := r3.Vec{
		X: cp * math.Sin(o.Yaw),
		Y: math.Sin(o.Pitch),
		Z: cp * math.Cos(o.Yaw),
	}
	return r3.Add(o.Target, r3.Scale(o.Distance, offset))
}

// Forward returns the unit view direction.
func (o *Orbit) Forward() r3.Vec {
	return r3.Unit(r3.Sub(o.Target, o.Position()))
}

// Basis returns the forward, right and up unit vectors.
func (o *Orbit) Basis() (forward, right, up r3.Vec) {
	forward = o.Forward()
	right = r3.Unit(r3.Cross(forward, worldUp))
	up = r3.Cross(right, forward)
	return forward, right, up
}

// Rotate turns the camera around the target. Pitch is clamped short of the
// poles.
func (o *Orbit) Rotate(dYaw, dPitch float64) {
	o.Yaw = math.Mod(o.Yaw+dYaw, 2*math.Pi)
	o.Pitch = math.Max(-maxPitch, math.Min(maxPitch, o.Pitch+dPitch))
}

// Zoom moves the camera toward (positive steps) or away from the target.
func (o *Orbit) Zoom(steps float64) {
	o.Distance *= math.Pow(0.9, steps)
	o.Distance = math.Max(o.MinDistance, math.Min(o.MaxDistance, o.Distance))
}

func (o *Orbit) focal(h int) float64 {
	return float64(h) / 2 / math.Tan(o.FOV/2)
}

// Project maps a world point to screen coordinates on a w x h surface.
// ok is false for points behind the near plane.
func (o *Orbit) Project(p r3.Vec, w, h int) (x, y, depth float64, ok bool) {
	forward, right, up := o.Basis()
	d := r3.Sub(p, o.Position())
	z := r3.Dot(d, forward)
	if z <= o.Near {
		return 0, 0, z, false
	}
	f := o.focal(h)
	x = float64(w)/2 + r3.Dot(d, right)*f/z
	y = float64(h)/2 - r3.Dot(d, up)*f/z
	return x, y, z, true
}

// ScreenRay returns the ray through screen position (sx, sy).
func (o *Orbit) ScreenRay(sx, sy float64, w, h int) Ray {
	forward, right, up := o.Basis()
	f := o.focal(h)
	dir := r3.Add(forward, r3.Add(
		r3.Scale((sx-float64(w)/2)/f, right),
		r3.Scale(-(sy-float64(h)/2)/f, up),
	))
	return Ray{Origin: o.Position(), Dir: r3.Unit(dir)}
}

// ViewProjection returns the column-major view-projection matrix for the
// given aspect ratio, suitable for a GL uniform.
func (o *Orbit) ViewProjection(aspect float64) [16]float32 {
	forward, right, up := o.Basis()
	eye := o.Position()

	view := [16]float64{
		right.X, up.X, -forward.X, 0,
		right.Y, up.Y, -forward.Y, 0,
		right.Z, up.Z, -forward.Z, 0,
		-r3.Dot(right, eye), -r3.Dot(up, eye), r3.Dot(forward, eye), 1,
	}

	t := 1 / math.Tan(o.FOV/2)
	n, f := o.Near, o.Far
	proj := [16]float64{
		t / aspect, 0, 0, 0,
		0, t, 0, 0,
		0, 0, (f + n) / (n - f), -1,
		0, 0, 2 * f * n / (n - f), 0,
	}

	var out [16]float32
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += proj[k*4+r] * view[c*4+k]
			}
			out[c*4+r] = float32(sum)
		}
	}
	return out
}
