package fluid_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphfluid/internal/fluid"
)

var _ = Describe("Params", func() {
	Describe("NewKernel", func() {
		It("derives the normalisation constants for h = 1", func() {
			k := fluid.NewKernel(1)
			Expect(k.Poly6).To(BeNumerically("~", 315/(64*math.Pi), 1e-12))
			Expect(k.Spiky).To(BeNumerically("~", 15/math.Pi, 1e-12))
			Expect(k.Laplace).To(BeNumerically("~", 45/math.Pi, 1e-12))
		})

		It("scales with h", func() {
			k := fluid.NewKernel(0.5)
			Expect(k.Poly6).To(BeNumerically("~", 315/(64*math.Pi)*512, 1e-6))
			Expect(k.Spiky).To(BeNumerically("~", 15/math.Pi*64, 1e-9))
		})
	})

	Describe("Validate", func() {
		It("rejects a non-positive smoothing radius", func() {
			for _, h := range []float64{0, -0.4, math.NaN()} {
				p := fluid.DefaultParams()
				p.H = h
				_, err := p.Validate()
				Expect(err).To(MatchError(fluid.ErrInvalidSmoothingRadius))
			}
		})

		It("rejects non-positive mass and timestep", func() {
			p := fluid.DefaultParams()
			p.ParticleMass = 0
			_, err := p.Validate()
			Expect(err).To(MatchError(fluid.ErrInvalidMass))

			p = fluid.DefaultParams()
			p.DeltaTime = -0.01
			_, err = p.Validate()
			Expect(err).To(MatchError(fluid.ErrInvalidTimestep))
		})

		It("clamps counts, damping and the density floor", func() {
			p := fluid.DefaultParams()
			p.ParticleCount = 0
			p.Substeps = -3
			p.Damping = 1.5
			p.MinDensity = 0

			v, err := p.Validate()
			Expect(err).NotTo(HaveOccurred())
			Expect(v.ParticleCount).To(Equal(1))
			Expect(v.Substeps).To(Equal(1))
			Expect(v.Damping).To(Equal(1.0))
			Expect(v.MinDensity).To(Equal(fluid.DefaultMinDensity))

			p.Damping = -0.2
			v, err = p.Validate()
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Damping).To(Equal(0.0))
		})
	})

	Describe("Apply", func() {
		It("replaces only the named fields and leaves the receiver alone", func() {
			base := fluid.DefaultParams()
			next, err := base.Apply(map[string]any{
				"viscosityConstant": 5,
				"gravity":           []any{0, -1, 0},
				"h":                 "0.5",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(next.Viscosity).To(Equal(5.0))
			Expect(next.Gravity).To(Equal(fluid.Vec3{0, -1, 0}))
			Expect(next.H).To(Equal(0.5))
			Expect(next.GasConstant).To(Equal(base.GasConstant))
			Expect(next.Bounds).To(Equal(base.Bounds))

			Expect(base.Viscosity).To(Equal(2.0))
			Expect(base.H).To(Equal(0.4))
		})

		It("rejects unknown names", func() {
			_, err := fluid.DefaultParams().Apply(map[string]any{"viscosity": 1, "poly6Constant": 3})
			Expect(err).To(MatchError(fluid.ErrUnknownParam))
			Expect(err.Error()).To(ContainSubstring("poly6Constant"))
		})
	})

	Describe("Uniforms", func() {
		It("exposes every recognized name", func() {
			p := fluid.DefaultParams()
			force := fluid.ExternalForce{Point: [3]float32{1, 2, 3}, Magnitude: 5}
			m := p.Uniforms(fluid.NewKernel(p.H), force).Map()

			for _, name := range []string{
				"h", "gasConstant", "restDensity", "viscosityConstant", "particleMass",
				"damping", "gravity", "bounds", "deltaTime", "particleCount",
				"externalForcePoint", "externalForceMagnitude",
				"poly6Constant", "spikyConstant", "laplaceConstant",
			} {
				Expect(m).To(HaveKey(name))
			}
			Expect(m["externalForceMagnitude"]).To(Equal(float32(5)))
			Expect(m["particleCount"]).To(Equal(int32(p.ParticleCount)))
		})
	})
})

var _ = Describe("CheckLayout", func() {
	It("accepts the packed 48-byte record", func() {
		Expect(fluid.CheckLayout()).To(Succeed())
	})
})
