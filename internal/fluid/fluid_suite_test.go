package fluid_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphfluid/internal/compute"
	"github.com/san-kum/sphfluid/internal/fluid"
)

func TestFluid(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fluid Suite")
}

// quietParams is a small, gravity-free configuration with a large box.
func quietParams(n int) fluid.Params {
	p := fluid.DefaultParams()
	p.ParticleCount = n
	p.Gravity = fluid.Vec3{}
	p.Bounds = fluid.Vec3{50, 50, 50}
	p.EmissionBox = fluid.Vec3{1, 1, 1}
	p.EmissionOffset = fluid.Vec3{}
	return p
}

func newSim(p fluid.Params, backend compute.Backend, seed int64) *fluid.Simulation {
	GinkgoHelper()
	sim, err := fluid.New(fluid.Options{Params: p, Backend: backend, Seed: seed})
	Expect(err).NotTo(HaveOccurred())
	Expect(sim.Init(context.Background())).To(Succeed())
	return sim
}
