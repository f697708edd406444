package config

import (
	"sort"

	"github.com/san-kum/sphfluid/internal/fluid"
)

var Presets = map[string]fluid.Params{
	"default": fluid.DefaultParams(),
	"water": {
		H: 0.4, GasConstant: 16, RestDensity: 1000, Viscosity: 1, ParticleMass: 0.1,
		Damping: 0.1, Gravity: fluid.Vec3{0, -9.81, 0}, Bounds: fluid.Vec3{6, 5, 4},
		DeltaTime: 0.01, Substeps: 2, ParticleCount: 8192,
		EmissionBox: fluid.Vec3{2, 4, 3}, EmissionOffset: fluid.Vec3{-3, 0, 0},
		MinDensity: fluid.DefaultMinDensity,
	},
	"viscous": {
		H: 0.4, GasConstant: 8, RestDensity: 1000, Viscosity: 12, ParticleMass: 0.1,
		Damping: 0.3, Gravity: fluid.Vec3{0, -9.81, 0}, Bounds: fluid.Vec3{4, 5, 4},
		DeltaTime: 0.005, Substeps: 2, ParticleCount: 4096,
		EmissionBox: fluid.Vec3{1.5, 2, 1.5}, EmissionOffset: fluid.Vec3{0, 2, 0},
		MinDensity: fluid.DefaultMinDensity,
	},
	"splash": {
		H: 0.4, GasConstant: 24, RestDensity: 1000, Viscosity: 0.5, ParticleMass: 0.1,
		Damping: 0.05, Gravity: fluid.Vec3{0, -14, 0}, Bounds: fluid.Vec3{8, 6, 3},
		DeltaTime: 0.008, Substeps: 2, ParticleCount: 6144,
		EmissionBox: fluid.Vec3{1, 2, 1}, EmissionOffset: fluid.Vec3{0, 3.5, 0},
		MinDensity: fluid.DefaultMinDensity,
	},
}

// GetPreset returns a copy of the named parameter set.
func GetPreset(name string) (fluid.Params, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
