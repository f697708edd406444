package fluid_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphfluid/internal/compute"
	"github.com/san-kum/sphfluid/internal/fluid"
)

type failingPipeline struct {
	*fluid.HostPipeline
	failOn fluid.Stage
}

var errDispatch = errors.New("device lost")

func (f *failingPipeline) Run(ctx context.Context, stage fluid.Stage) (int, error) {
	if stage == f.failOn {
		return 0, errDispatch
	}
	return f.HostPipeline.Run(ctx, stage)
}

type syncingPipeline struct {
	*fluid.HostPipeline
	syncs int
}

func (s *syncingPipeline) Sync() error {
	s.syncs++
	return nil
}

// overflowPipeline corrupts the force of the first particle right before
// integration.
type overflowPipeline struct {
	*fluid.HostPipeline
	particles []fluid.Particle
}

func (o *overflowPipeline) Bind(particles []fluid.Particle) error {
	o.particles = particles
	return o.HostPipeline.Bind(particles)
}

func (o *overflowPipeline) Run(ctx context.Context, stage fluid.Stage) (int, error) {
	if stage == fluid.StageIntegrate {
		o.particles[0].Force = [3]float32{float32(math.Inf(1)), 0, 0}
	}
	return o.HostPipeline.Run(ctx, stage)
}

type frameRecorder struct {
	frames []uint64
	counts []int
}

func (r *frameRecorder) OnFrame(stats fluid.FrameStats, particles []fluid.Particle) {
	r.frames = append(r.frames, stats.Frame)
	r.counts = append(r.counts, len(particles))
}

var _ = Describe("Simulation", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("lifecycle", func() {
		It("disables itself without a pipeline", func() {
			sim, err := fluid.New(fluid.Options{Params: fluid.DefaultParams()})
			Expect(err).To(MatchError(fluid.ErrNoPipeline))
			Expect(sim.Init(ctx)).To(MatchError(fluid.ErrDisabled))

			_, err = sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).To(MatchError(fluid.ErrDisabled))
			Expect(sim.Submit(fluid.DefaultParams())).To(MatchError(fluid.ErrDisabled))
		})

		It("rejects an invalid smoothing radius at construction", func() {
			p := fluid.DefaultParams()
			p.H = 0
			_, err := fluid.New(fluid.Options{Params: p, Backend: compute.NewSerialBackend()})
			Expect(err).To(MatchError(fluid.ErrInvalidSmoothingRadius))
		})

		It("requires Init before Update", func() {
			sim, err := fluid.New(fluid.Options{Params: quietParams(4), Backend: compute.NewSerialBackend()})
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).To(MatchError(fluid.ErrNotInitialized))
		})

		It("refuses work after teardown", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			sim.Teardown()
			sim.Teardown()

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).To(MatchError(fluid.ErrTornDown))
			Expect(sim.Particles()).To(BeNil())
			Expect(sim.Snapshot()).To(BeNil())
		})

		It("stops between stages when the context is cancelled", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Update(cctx, fluid.ExternalForce{})
			Expect(err).To(MatchError(context.Canceled))
		})

		It("wraps dispatch failures with the stage", func() {
			host := fluid.NewHostPipeline(compute.NewSerialBackend())
			sim, err := fluid.New(fluid.Options{
				Params:   quietParams(4),
				Pipeline: &failingPipeline{HostPipeline: host, failOn: fluid.StageForces},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Init(ctx)).To(Succeed())

			_, err = sim.Update(ctx, fluid.ExternalForce{})
			var stageErr *fluid.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(fluid.StageForces))
			Expect(stageErr.Substep).To(Equal(0))
			Expect(err).To(MatchError(errDispatch))
		})

		It("counts frames and substeps and notifies observers", func() {
			p := quietParams(16)
			p.Substeps = 3
			rec := &frameRecorder{}
			sim, err := fluid.New(fluid.Options{
				Params:    p,
				Backend:   compute.NewSerialBackend(),
				Observers: []fluid.Observer{rec},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Init(ctx)).To(Succeed())

			for i := 0; i < 4; i++ {
				stats, err := sim.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.Frame).To(Equal(uint64(i)))
				Expect(stats.Substeps).To(Equal(3))
				Expect(stats.Particles).To(Equal(16))
			}
			Expect(sim.Frame()).To(Equal(uint64(4)))
			Expect(rec.frames).To(Equal([]uint64{0, 1, 2, 3}))
			Expect(rec.counts).To(HaveEach(16))
		})

		It("syncs device-side state once per frame", func() {
			p := quietParams(8)
			p.Substeps = 2
			pl := &syncingPipeline{HostPipeline: fluid.NewHostPipeline(compute.NewSerialBackend())}
			sim, err := fluid.New(fluid.Options{Params: p, Pipeline: pl})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Init(ctx)).To(Succeed())

			for i := 0; i < 3; i++ {
				_, err := sim.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(pl.syncs).To(Equal(3))
		})
	})

	Describe("stages", func() {
		It("holds a lone particle at rest density in equilibrium", func() {
			p := quietParams(1)
			p.H = 1
			p.ParticleMass = 1
			k := fluid.NewKernel(p.H)
			p.RestDensity = p.ParticleMass * k.Poly6

			sim := newSim(p, compute.NewSerialBackend(), 7)
			_, err := sim.RunStage(ctx, fluid.StageDensity, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.RunStage(ctx, fluid.StageForces, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			pt := sim.Particles()[0]
			Expect(float64(pt.Density)).To(BeNumerically("~", p.RestDensity, 1e-5))
			Expect(pt.Pressure).To(BeNumerically("~", 0, 1e-3))
			Expect(pt.Force).To(Equal([3]float32{}))
		})

		It("reflects a particle that crosses the boundary", func() {
			p := quietParams(1)
			p.Bounds = fluid.Vec3{1, 1, 1}
			p.Damping = 0.2
			p.DeltaTime = 0.01

			sim := newSim(p, compute.NewSerialBackend(), 3)
			pt := &sim.Particles()[0]
			pt.Position = [3]float32{0.99, 0, 0}
			pt.Velocity = [3]float32{5, 0, 0}
			pt.Force = [3]float32{}

			_, err := sim.RunStage(ctx, fluid.StageIntegrate, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			Expect(pt.Position[0]).To(Equal(float32(1)))
			Expect(pt.Velocity[0]).To(BeNumerically("~", -4, 1e-5))
			Expect(pt.Velocity[1]).To(BeZero())
		})

		It("is pure: running density twice gives identical output", func() {
			sim := newSim(quietParams(200), compute.NewSerialBackend(), 11)
			_, err := sim.RunStage(ctx, fluid.StageDensity, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			first := sim.Snapshot()

			_, err = sim.RunStage(ctx, fluid.StageDensity, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Snapshot()).To(Equal(first))
		})

		It("pushes a two-particle pair apart symmetrically", func() {
			p := quietParams(2)
			p.H = 1
			p.ParticleMass = 1
			p.GasConstant = 1
			p.RestDensity = 0
			p.Viscosity = 0

			sim := newSim(p, compute.NewSerialBackend(), 5)
			ps := sim.Particles()
			ps[0].Position = [3]float32{0, 0, 0}
			ps[1].Position = [3]float32{0.5, 0, 0}

			_, err := sim.RunStage(ctx, fluid.StageDensity, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.RunStage(ctx, fluid.StageForces, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			k := fluid.NewKernel(1)
			rho := k.Poly6 * (1 + math.Pow(0.75, 3))
			Expect(float64(ps[0].Density)).To(BeNumerically("~", rho, 1e-5))
			Expect(float64(ps[1].Density)).To(BeNumerically("~", rho, 1e-5))
			Expect(float64(ps[0].Pressure)).To(BeNumerically("~", rho, 1e-5))

			want := 0.75 * k.Spiky
			Expect(float64(ps[0].Force[0])).To(BeNumerically("~", -want, 1e-4))
			Expect(float64(ps[1].Force[0])).To(BeNumerically("~", want, 1e-4))
			Expect(ps[0].Force[1]).To(BeZero())
			Expect(ps[0].Force[2]).To(BeZero())
		})

		It("matches the hand-computed density and pressure of a close pair", func() {
			p := quietParams(2)
			p.H = 1
			p.ParticleMass = 1
			p.GasConstant = 16
			p.RestDensity = 1
			p.Viscosity = 0

			sim := newSim(p, compute.NewSerialBackend(), 5)
			ps := sim.Particles()
			ps[0].Position = [3]float32{0, 0, 0}
			ps[1].Position = [3]float32{0.5, 0, 0}

			_, err := sim.RunStage(ctx, fluid.StageDensity, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.RunStage(ctx, fluid.StageForces, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			k := fluid.NewKernel(1)
			rho := k.Poly6 + k.Poly6*math.Pow(1-0.25, 3)
			pressure := 16 * (rho - 1)
			Expect(float64(ps[0].Density)).To(BeNumerically("~", 2.2276254, 1e-5))
			Expect(float64(ps[0].Density)).To(BeNumerically("~", rho, 1e-5))
			Expect(float64(ps[0].Pressure)).To(BeNumerically("~", pressure, 1e-4))
			Expect(float64(ps[1].Pressure)).To(BeNumerically("~", pressure, 1e-4))

			want := pressure / rho * 0.75 * k.Spiky
			Expect(float64(ps[0].Force[0])).To(BeNumerically("~", -want, 1e-3))
			Expect(float64(ps[1].Force[0])).To(BeNumerically("~", want, 1e-3))
		})

		It("skips neighbours whose density is below the minimum", func() {
			p := quietParams(2)
			p.H = 1
			p.Gravity = fluid.Vec3{0, -9.81, 0}
			sim := newSim(p, compute.NewSerialBackend(), 6)

			ps := sim.Particles()
			ps[0] = fluid.Particle{Position: [3]float32{0, 0, 0}, Density: 1, Pressure: 50, Mass: 0.1}
			ps[1] = fluid.Particle{Position: [3]float32{0.3, 0, 0}, Velocity: [3]float32{4, 0, 0}, Density: 0, Pressure: 50, Mass: 0.1}

			_, err := sim.RunStage(ctx, fluid.StageForces, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			f := ps[0].Force
			Expect(f[0]).To(BeZero())
			Expect(float64(f[1])).To(BeNumerically("~", -0.981, 1e-5))
			Expect(f[2]).To(BeZero())
		})

		It("keeps position and zeroes velocity when integration overflows", func() {
			p := quietParams(1)
			sim := newSim(p, compute.NewSerialBackend(), 8)
			pt := &sim.Particles()[0]
			pt.Position = [3]float32{0.2, 0.3, 0.4}
			pt.Velocity = [3]float32{1, 1, 1}
			pt.Force = [3]float32{float32(math.Inf(1)), 0, 0}

			rejected, err := sim.RunStage(ctx, fluid.StageIntegrate, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected).To(Equal(1))
			Expect(pt.Position).To(Equal([3]float32{0.2, 0.3, 0.4}))
			Expect(pt.Velocity).To(Equal([3]float32{}))
		})

		It("reports overflowed particles in the frame stats", func() {
			pl := &overflowPipeline{HostPipeline: fluid.NewHostPipeline(compute.NewSerialBackend())}
			p := quietParams(4)
			p.Substeps = 2
			sim, err := fluid.New(fluid.Options{Params: p, Pipeline: pl, Seed: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Init(ctx)).To(Succeed())

			stats, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Rejected).To(Equal(2))
			for _, pt := range sim.Particles() {
				for a := 0; a < 3; a++ {
					Expect(math.IsInf(float64(pt.Position[a]), 0)).To(BeFalse())
				}
			}
			Expect(sim.Particles()[0].Velocity).To(Equal([3]float32{}))
		})

		It("adds no force when the probe sample is inactive", func() {
			p := quietParams(64)
			p.Gravity = fluid.Vec3{0, -9.81, 0}
			plain := newSim(p, compute.NewSerialBackend(), 21)
			probed := newSim(p, compute.NewSerialBackend(), 21)

			idle := fluid.ExternalForce{Point: [3]float32{1, 2, 3}}
			for i := 0; i < 10; i++ {
				_, err := plain.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
				_, err = probed.Update(ctx, idle)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(probed.Snapshot()).To(Equal(plain.Snapshot()))
		})

		It("pulls particles toward an active probe point", func() {
			p := quietParams(1)
			sim := newSim(p, compute.NewSerialBackend(), 2)
			sim.Particles()[0].Position = [3]float32{0, 0, 0}

			force := fluid.ExternalForce{Point: [3]float32{0, 0, 4}, Magnitude: 5}
			_, err := sim.RunStage(ctx, fluid.StageDensity, force)
			Expect(err).NotTo(HaveOccurred())
			_, err = sim.RunStage(ctx, fluid.StageForces, force)
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Particles()[0].Force).To(Equal([3]float32{0, 0, 5}))
		})

		It("stays finite and in bounds with strongly negative pressure", func() {
			for seed := int64(1); seed <= 4; seed++ {
				p := fluid.DefaultParams()
				p.ParticleCount = 64
				p.RestDensity = 5000
				p.Bounds = fluid.Vec3{2, 2, 2}
				sim := newSim(p, compute.NewSerialBackend(), seed)

				for i := 0; i < 150; i++ {
					_, err := sim.Update(ctx, fluid.ExternalForce{})
					Expect(err).NotTo(HaveOccurred())
				}
				for _, pt := range sim.Particles() {
					for a := 0; a < 3; a++ {
						x := float64(pt.Position[a])
						Expect(math.IsNaN(x) || math.IsInf(x, 0)).To(BeFalse())
						Expect(math.Abs(x)).To(BeNumerically("<=", p.Bounds[a]+1e-4))
					}
				}
			}
		})

		It("matches the serial backend bit for bit on the CPU backend", func() {
			p := fluid.DefaultParams()
			p.ParticleCount = 300
			cpu := compute.NewCPUBackend(4)
			cpu.MinChunk = 8

			serial := newSim(p, compute.NewSerialBackend(), 99)
			parallel := newSim(p, cpu, 99)
			for i := 0; i < 15; i++ {
				_, err := serial.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
				_, err = parallel.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(parallel.Snapshot()).To(Equal(serial.Snapshot()))
		})
	})

	Describe("queued commands", func() {
		It("applies parameter changes at the next frame", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			Expect(sim.Apply(map[string]any{"h": 0.8, "viscosityConstant": 4})).To(Succeed())
			Expect(sim.Params().H).To(Equal(0.4))

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Params().H).To(Equal(0.8))
			Expect(sim.Params().Viscosity).To(Equal(4.0))
			Expect(sim.Kernel()).To(Equal(fluid.NewKernel(0.8)))
		})

		It("stacks partial updates on a queued replacement", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			p := quietParams(8)
			p.GasConstant = 30
			Expect(sim.Submit(p)).To(Succeed())
			Expect(sim.Apply(map[string]any{"damping": 0.5})).To(Succeed())

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Params().GasConstant).To(Equal(30.0))
			Expect(sim.Params().Damping).To(Equal(0.5))
		})

		It("keeps the current parameters when an update is invalid", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			Expect(sim.Apply(map[string]any{"h": -1})).To(MatchError(fluid.ErrInvalidSmoothingRadius))
			Expect(sim.Apply(map[string]any{"bogus": 1})).To(MatchError(fluid.ErrUnknownParam))

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Params().H).To(Equal(0.4))
		})

		It("reallocates to a new particle count only at the next frame", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			Expect(sim.Apply(map[string]any{"particleCount": 20})).To(Succeed())
			Expect(sim.Particles()).To(HaveLen(8))

			stats, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Particles).To(Equal(20))
			Expect(sim.Particles()).To(HaveLen(20))
		})

		It("applies a mass change to live particles without reseeding", func() {
			p := quietParams(8)
			p.DeltaTime = 1e-6
			sim := newSim(p, compute.NewSerialBackend(), 1)
			sim.Particles()[0].Position = [3]float32{10, 10, 10}

			Expect(sim.Apply(map[string]any{"particleMass": 0.5})).To(Succeed())
			Expect(sim.Particles()[0].Mass).To(Equal(float32(0.1)))

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			for _, pt := range sim.Particles() {
				Expect(pt.Mass).To(Equal(float32(0.5)))
			}
			Expect(float64(sim.Particles()[0].Position[0])).To(BeNumerically("~", 10, 1e-3))
		})

		It("accepts updates from another goroutine while frames run", func() {
			sim := newSim(quietParams(16), compute.NewSerialBackend(), 1)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				for i := 0; i < 200; i++ {
					if err := sim.Apply(map[string]any{"viscosityConstant": float64(i % 5)}); err != nil {
						done <- err
						return
					}
				}
				done <- nil
			}()
			for i := 0; i < 20; i++ {
				_, err := sim.Update(ctx, fluid.ExternalForce{})
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(<-done).To(Succeed())

			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Params().Viscosity).To(Equal(4.0))
		})

		It("stacks a partial update on parameters applied in an earlier frame", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			p := quietParams(8)
			p.GasConstant = 30
			Expect(sim.Submit(p)).To(Succeed())
			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())

			Expect(sim.Apply(map[string]any{"damping": 0.5})).To(Succeed())
			_, err = sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Params().GasConstant).To(Equal(30.0))
			Expect(sim.Params().Damping).To(Equal(0.5))
		})

		It("clamps a zero particle count to one", func() {
			sim := newSim(quietParams(8), compute.NewSerialBackend(), 1)
			Expect(sim.Apply(map[string]any{"particleCount": 0, "substeps": 0})).To(Succeed())
			stats, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Particles).To(Equal(1))
			Expect(stats.Substeps).To(Equal(1))
		})

		It("reseeds on reset", func() {
			p := quietParams(32)
			p.DeltaTime = 1e-6
			sim := newSim(p, compute.NewSerialBackend(), 1)
			sim.Particles()[0].Position = [3]float32{40, 40, 40}

			sim.Reset()
			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			for _, pt := range sim.Particles() {
				for a := 0; a < 3; a++ {
					Expect(math.Abs(float64(pt.Position[a]))).To(BeNumerically("<=", 1.001))
				}
			}
		})

		It("opens the bounds while the override is held", func() {
			p := quietParams(1)
			p.Bounds = fluid.Vec3{1, 1, 1}
			p.DeltaTime = 0.01
			sim := newSim(p, compute.NewSerialBackend(), 4)

			sim.BoundsOverride(true)
			sim.Particles()[0].Position = [3]float32{0.5, 0, 0}
			sim.Particles()[0].Velocity = [3]float32{100, 0, 0}
			_, err := sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Particles()[0].Position[0]).To(BeNumerically("~", 1.5, 1e-4))

			sim.BoundsOverride(false)
			_, err = sim.Update(ctx, fluid.ExternalForce{})
			Expect(err).NotTo(HaveOccurred())
			Expect(sim.Particles()[0].Position[0]).To(Equal(float32(1)))
		})
	})
})
