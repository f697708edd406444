package fluid

import (
	"fmt"
	"math"
	"unsafe"
)

// ParticleStride is the size in bytes of one particle record on every
// backend. The GPU declares the same record as twelve std430 floats.
const ParticleStride = 48

// Particle is one fluid element. Field order and width are part of the
// device contract and must not change without updating the shaders.
type Particle struct {
	Position [3]float32
	Velocity [3]float32
	Force    [3]float32
	Density  float32
	Pressure float32
	Mass     float32
}

// fieldLayout lists the device offsets of each record field.
var fieldLayout = []struct {
	name   string
	offset uintptr
}{
	{"position", 0},
	{"velocity", 12},
	{"force", 24},
	{"density", 36},
	{"pressure", 40},
	{"mass", 44},
}

// CheckLayout verifies that the host Particle matches the device record.
// A mismatch must stop the simulation before anything is dispatched.
func CheckLayout() error {
	var p Particle
	if size := unsafe.Sizeof(p); size != ParticleStride {
		return fmt.Errorf("%w: record is %d bytes, want %d", ErrLayoutMismatch, size, ParticleStride)
	}

	offsets := []uintptr{
		unsafe.Offsetof(p.Position),
		unsafe.Offsetof(p.Velocity),
		unsafe.Offsetof(p.Force),
		unsafe.Offsetof(p.Density),
		unsafe.Offsetof(p.Pressure),
		unsafe.Offsetof(p.Mass),
	}
	for i, f := range fieldLayout {
		if offsets[i] != f.offset {
			return fmt.Errorf("%w: %s at offset %d, want %d", ErrLayoutMismatch, f.name, offsets[i], f.offset)
		}
	}
	return nil
}

// Speed returns the magnitude of the particle velocity.
func (p *Particle) Speed() float64 {
	vx, vy, vz := float64(p.Velocity[0]), float64(p.Velocity[1]), float64(p.Velocity[2])
	return math.Sqrt(vx*vx + vy*vy + vz*vz)
}

// ExternalForce is the per-frame sample produced by the pointer probe.
// The zero value applies no force.
type ExternalForce struct {
	Point     [3]float32
	Magnitude float32
}

// Active reports whether the sample contributes any force.
func (f ExternalForce) Active() bool {
	return f.Magnitude != 0
}
