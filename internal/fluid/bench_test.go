package fluid_test

import (
	"context"
	"testing"

	"github.com/san-kum/sphfluid/internal/compute"
	"github.com/san-kum/sphfluid/internal/fluid"
)

func benchmarkUpdate(b *testing.B, n int, backend compute.Backend) {
	p := fluid.DefaultParams()
	p.ParticleCount = n
	sim, err := fluid.New(fluid.Options{Params: p, Backend: backend, Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	if err := sim.Init(ctx); err != nil {
		b.Fatal(err)
	}
	defer sim.Teardown()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sim.Update(ctx, fluid.ExternalForce{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUpdate_Serial_512(b *testing.B) {
	benchmarkUpdate(b, 512, compute.NewSerialBackend())
}

func BenchmarkUpdate_CPU_512(b *testing.B) {
	benchmarkUpdate(b, 512, compute.NewCPUBackend(0))
}

func BenchmarkUpdate_CPU_2048(b *testing.B) {
	benchmarkUpdate(b, 2048, compute.NewCPUBackend(0))
}
