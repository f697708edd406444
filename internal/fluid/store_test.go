package fluid_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphfluid/internal/fluid"
)

var _ = Describe("Store", func() {
	It("clamps allocation to one particle", func() {
		s := fluid.NewStore(0)
		Expect(s.Len()).To(Equal(1))
		s.Allocate(-5)
		Expect(s.Len()).To(Equal(1))
	})

	It("reseeds inside the emission box clipped to the bounds", func() {
		for seed := int64(1); seed <= 5; seed++ {
			rng := rand.New(rand.NewSource(seed))
			p := fluid.DefaultParams()
			p.EmissionBox = fluid.Vec3{rng.Float64() * 6, rng.Float64() * 6, rng.Float64() * 6}
			p.EmissionOffset = fluid.Vec3{rng.Float64() - 0.5, rng.Float64(), 0}
			p.Bounds = fluid.Vec3{3, 2, 4}

			s := fluid.NewStore(500)
			for i := range s.Particles() {
				s.Particles()[i].Velocity = [3]float32{9, 9, 9}
				s.Particles()[i].Density = 7
			}
			s.Reseed(rng, p)

			for _, pt := range s.Particles() {
				for a := 0; a < 3; a++ {
					e := math.Min(p.EmissionBox[a], p.Bounds[a])
					x := float64(pt.Position[a])
					Expect(x).To(BeNumerically(">=", -e+p.EmissionOffset[a]-1e-5))
					Expect(x).To(BeNumerically("<=", e+p.EmissionOffset[a]+1e-5))
				}
				Expect(pt.Velocity).To(Equal([3]float32{}))
				Expect(pt.Force).To(Equal([3]float32{}))
				Expect(pt.Density).To(BeZero())
				Expect(pt.Pressure).To(BeZero())
				Expect(pt.Mass).To(Equal(float32(p.ParticleMass)))
			}
		}
	})

	It("clones without aliasing", func() {
		s := fluid.NewStore(3)
		c := s.Clone()
		c[0].Mass = 42
		Expect(s.Particles()[0].Mass).To(BeZero())
	})
})
