package fluid

import (
	"math"
	"math/rand"
)

// Store owns the packed particle array.
type Store struct {
	particles []Particle
}

// NewStore allocates a zeroed store of n particles.
func NewStore(n int) *Store {
	s := &Store{}
	s.Allocate(n)
	return s
}

// Allocate replaces the particle array with n zeroed records. n below one
// is clamped to one.
func (s *Store) Allocate(n int) {
	if n < 1 {
		n = 1
	}
	s.particles = make([]Particle, n)
}

// Reseed scatters every particle uniformly inside the emission box, clipped
// to the bounds, and clears its dynamic state.
func (s *Store) Reseed(rng *rand.Rand, p Params) {
	var extent, offset [3]float64
	for a := 0; a < 3; a++ {
		extent[a] = math.Min(p.EmissionBox[a], p.Bounds[a])
		offset[a] = p.EmissionOffset[a]
	}

	mass := float32(p.ParticleMass)
	for i := range s.particles {
		var pos [3]float32
		for a := 0; a < 3; a++ {
			pos[a] = float32((rng.Float64()*2-1)*extent[a] + offset[a])
		}
		s.particles[i] = Particle{Position: pos, Mass: mass}
	}
}

// SetMass overwrites the mass of every particle, keeping its motion.
func (s *Store) SetMass(m float32) {
	for i := range s.particles {
		s.particles[i].Mass = m
	}
}

// Particles returns the live array. Callers must not retain it across an
// Allocate.
func (s *Store) Particles() []Particle {
	return s.particles
}

// Len returns the particle count.
func (s *Store) Len() int {
	return len(s.particles)
}

// Clone copies the particle array.
func (s *Store) Clone() []Particle {
	out := make([]Particle, len(s.particles))
	copy(out, s.particles)
	return out
}
