package metrics

import (
	"math"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// KineticEnergyOf returns Σ ½ m |v|² over the particles.
func KineticEnergyOf(particles []fluid.Particle) float64 {
	total := 0.0
	for i := range particles {
		s := particles[i].Speed()
		total += 0.5 * float64(particles[i].Mass) * s * s
	}
	return total
}

// KineticEnergy reports the mean total kinetic energy per observed frame.
type KineticEnergy struct {
	name    string
	total   float64
	last    float64
	samples int
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(_ fluid.FrameStats, particles []fluid.Particle) {
	k.last = KineticEnergyOf(particles)
	k.total += k.last
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Last() float64 { return k.last }

func (k *KineticEnergy) Reset() {
	k.total, k.last, k.samples = 0, 0, 0
}

// MaxSpeed tracks the fastest particle seen.
type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(_ fluid.FrameStats, particles []fluid.Particle) {
	for i := range particles {
		m.max = math.Max(m.max, particles[i].Speed())
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }
func (m *MaxSpeed) Reset()         { m.max = 0 }

// Stability is the fraction of frames in which no particle exceeded the
// speed limit and no update was rejected.
type Stability struct {
	name       string
	limit      float64
	violations int
	samples    int
}

func NewStability(limit float64) *Stability {
	return &Stability{name: "stability", limit: limit}
}

func (s *Stability) Name() string { return s.name }

func (s *Stability) Observe(stats fluid.FrameStats, particles []fluid.Particle) {
	s.samples++
	if stats.Rejected > 0 {
		s.violations++
		return
	}
	for i := range particles {
		if particles[i].Speed() > s.limit {
			s.violations++
			return
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
