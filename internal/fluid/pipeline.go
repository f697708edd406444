package fluid

import (
	"context"
	"sync/atomic"

	"github.com/san-kum/sphfluid/internal/compute"
)

// Pipeline executes pipeline stages over a bound particle array.
type Pipeline interface {
	Name() string
	// Bind attaches a freshly allocated particle array. Any in-flight work
	// on the previous array has completed when Bind returns.
	Bind(particles []Particle) error
	// Push sets the uniforms read by every stage until the next Push.
	Push(u Uniforms) error
	// Run dispatches one stage and returns after every particle has been
	// processed. It reports the number of rejected particle updates.
	Run(ctx context.Context, stage Stage) (rejected int, err error)
	Release()
}

// Syncer is implemented by pipelines whose particle state lives outside the
// bound slice. Sync copies it back once per frame, before observers run.
type Syncer interface {
	Sync() error
}

// HostPipeline runs the Go stage kernels on a compute backend.
type HostPipeline struct {
	backend   compute.Backend
	particles []Particle
	uniforms  Uniforms
}

func NewHostPipeline(backend compute.Backend) *HostPipeline {
	return &HostPipeline{backend: backend}
}

func (h *HostPipeline) Name() string { return h.backend.Name() }

func (h *HostPipeline) Bind(particles []Particle) error {
	h.particles = particles
	return nil
}

func (h *HostPipeline) Push(u Uniforms) error {
	h.uniforms = u
	return nil
}

func (h *HostPipeline) Run(ctx context.Context, stage Stage) (int, error) {
	fn := stageFuncs[stage]
	ps := h.particles
	u := h.uniforms

	var rejected atomic.Int64
	err := h.backend.Dispatch(ctx, len(ps), func(start, end int) {
		if n := fn(ps, &u, start, end); n > 0 {
			rejected.Add(int64(n))
		}
	})
	return int(rejected.Load()), err
}

func (h *HostPipeline) Release() {
	h.particles = nil
	h.backend.Cleanup()
}
