package fluid

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DefaultMinDensity is the neighbour density below which a pair is skipped
// in the force stage.
const DefaultMinDensity = 1e-6

// OpenBounds are the half extents used while the bounds override is held.
var OpenBounds = Vec3{300, 300, 300}

// Vec3 is a parameter-side vector. Particle state itself is float32.
type Vec3 [3]float64

func (v Vec3) f32() [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// Params is the full simulation parameter set. It is a value type: every
// modification produces a new copy, so a UI editing a Params never aliases
// the state a running frame reads.
type Params struct {
	H              float64 `yaml:"h" mapstructure:"h"`
	GasConstant    float64 `yaml:"gasConstant" mapstructure:"gasConstant"`
	RestDensity    float64 `yaml:"restDensity" mapstructure:"restDensity"`
	Viscosity      float64 `yaml:"viscosityConstant" mapstructure:"viscosityConstant"`
	ParticleMass   float64 `yaml:"particleMass" mapstructure:"particleMass"`
	Damping        float64 `yaml:"damping" mapstructure:"damping"`
	Gravity        Vec3    `yaml:"gravity,flow" mapstructure:"gravity"`
	Bounds         Vec3    `yaml:"bounds,flow" mapstructure:"bounds"`
	DeltaTime      float64 `yaml:"deltaTime" mapstructure:"deltaTime"`
	Substeps       int     `yaml:"substeps" mapstructure:"substeps"`
	ParticleCount  int     `yaml:"particleCount" mapstructure:"particleCount"`
	EmissionBox    Vec3    `yaml:"emissionBox,flow" mapstructure:"emissionBox"`
	EmissionOffset Vec3    `yaml:"emissionOffset,flow" mapstructure:"emissionOffset"`
	MinDensity     float64 `yaml:"minDensity" mapstructure:"minDensity"`
}

// DefaultParams returns the stock water-like configuration.
func DefaultParams() Params {
	return Params{
		H:              0.4,
		GasConstant:    16,
		RestDensity:    1000,
		Viscosity:      2,
		ParticleMass:   0.1,
		Damping:        0,
		Gravity:        Vec3{0, -9.81, 0},
		Bounds:         Vec3{5, 5, 5},
		DeltaTime:      0.01,
		Substeps:       1,
		ParticleCount:  4096,
		EmissionBox:    Vec3{2, 4, 2},
		EmissionOffset: Vec3{0, 1, 0},
		MinDensity:     DefaultMinDensity,
	}
}

// Validate returns a normalised copy of p. Counts and damping are clamped
// into range; a non-positive smoothing radius, mass or timestep is rejected.
func (p Params) Validate() (Params, error) {
	if !(p.H > 0) || math.IsInf(p.H, 0) {
		return p, fmt.Errorf("%w: h=%g", ErrInvalidSmoothingRadius, p.H)
	}
	if !(p.ParticleMass > 0) {
		return p, fmt.Errorf("%w: mass=%g", ErrInvalidMass, p.ParticleMass)
	}
	if !(p.DeltaTime > 0) {
		return p, fmt.Errorf("%w: dt=%g", ErrInvalidTimestep, p.DeltaTime)
	}

	if p.ParticleCount < 1 {
		p.ParticleCount = 1
	}
	if p.Substeps < 1 {
		p.Substeps = 1
	}
	p.Damping = math.Max(0, math.Min(1, p.Damping))
	if !(p.MinDensity > 0) {
		p.MinDensity = DefaultMinDensity
	}
	for a := 0; a < 3; a++ {
		p.Bounds[a] = math.Abs(p.Bounds[a])
		p.EmissionBox[a] = math.Abs(p.EmissionBox[a])
	}
	return p, nil
}

// Apply returns a copy of p with the named fields replaced. Names are the
// recognized parameter names (h, gasConstant, gravity, ...). Numeric strings
// and integer values are accepted for float fields.
func (p Params) Apply(updates map[string]any) (Params, error) {
	next := p
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &next,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(updates); err != nil {
		return p, fmt.Errorf("decode params: %w", err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return p, fmt.Errorf("%w: %s", ErrUnknownParam, strings.Join(md.Unused, ", "))
	}
	return next, nil
}

// Kernel holds the smoothing-kernel normalisation constants for one h.
type Kernel struct {
	H       float64
	Poly6   float64
	Spiky   float64
	Laplace float64
}

// NewKernel derives the kernel constants for smoothing radius h.
func NewKernel(h float64) Kernel {
	return Kernel{
		H:       h,
		Poly6:   315 / (64 * math.Pi * math.Pow(h, 9)),
		Spiky:   15 / (math.Pi * math.Pow(h, 6)),
		Laplace: 45 / (math.Pi * math.Pow(h, 6)),
	}
}

// Uniforms is the per-frame value set every stage reads. It is pushed to the
// backend once per frame, before the first dispatch.
type Uniforms struct {
	H                      float32
	GasConstant            float32
	RestDensity            float32
	Viscosity              float32
	ParticleMass           float32
	Damping                float32
	Gravity                [3]float32
	Bounds                 [3]float32
	DeltaTime              float32
	ParticleCount          int32
	ExternalForcePoint     [3]float32
	ExternalForceMagnitude float32
	Poly6                  float32
	Spiky                  float32
	Laplace                float32
	MinDensity             float32
}

// Uniforms builds the frame value set from p, its kernel and a force sample.
func (p Params) Uniforms(k Kernel, force ExternalForce) Uniforms {
	return Uniforms{
		H:                      float32(p.H),
		GasConstant:            float32(p.GasConstant),
		RestDensity:            float32(p.RestDensity),
		Viscosity:              float32(p.Viscosity),
		ParticleMass:           float32(p.ParticleMass),
		Damping:                float32(p.Damping),
		Gravity:                p.Gravity.f32(),
		Bounds:                 p.Bounds.f32(),
		DeltaTime:              float32(p.DeltaTime),
		ParticleCount:          int32(p.ParticleCount),
		ExternalForcePoint:     force.Point,
		ExternalForceMagnitude: force.Magnitude,
		Poly6:                  float32(k.Poly6),
		Spiky:                  float32(k.Spiky),
		Laplace:                float32(k.Laplace),
		MinDensity:             float32(p.MinDensity),
	}
}

// Map returns the uniforms keyed by their shader names.
func (u Uniforms) Map() map[string]any {
	return map[string]any{
		"h":                      u.H,
		"gasConstant":            u.GasConstant,
		"restDensity":            u.RestDensity,
		"viscosityConstant":      u.Viscosity,
		"particleMass":           u.ParticleMass,
		"damping":                u.Damping,
		"gravity":                u.Gravity,
		"bounds":                 u.Bounds,
		"deltaTime":              u.DeltaTime,
		"particleCount":          u.ParticleCount,
		"externalForcePoint":     u.ExternalForcePoint,
		"externalForceMagnitude": u.ExternalForceMagnitude,
		"poly6Constant":          u.Poly6,
		"spikyConstant":          u.Spiky,
		"laplaceConstant":        u.Laplace,
		"minDensity":             u.MinDensity,
	}
}
