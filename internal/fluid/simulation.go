package fluid

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/sphfluid/internal/compute"
)

// Options configures a Simulation. Exactly one of Backend or Pipeline is
// needed; Pipeline wins when both are set.
type Options struct {
	Params    Params
	Backend   compute.Backend
	Pipeline  Pipeline
	Seed      int64
	Logger    *zap.Logger
	Observers []Observer
}

// pending holds commands queued for the start of the next frame.
type pending struct {
	reset      bool
	params     *Params
	boundsOpen *bool
}

// Simulation orchestrates the particle store, parameter set and pipeline.
// Update must be called from a single goroutine; Reset, Submit, Apply and
// BoundsOverride may be called from anywhere.
type Simulation struct {
	frameMu sync.Mutex
	cmdMu   sync.Mutex
	queued  pending
	// current mirrors params for command callers; guarded by cmdMu.
	current Params

	params     Params
	kernel     Kernel
	store      *Store
	pipeline   Pipeline
	rng        *rand.Rand
	log        *zap.Logger
	observers  []Observer
	frame      uint64
	boundsOpen bool

	initialized bool
	tornDown    bool
	disabled    atomic.Bool
}

// New validates opts and builds an uninitialised simulation. A missing
// pipeline disables the simulation; the returned value is still usable and
// reports ErrDisabled from every later call.
func New(opts Options) (*Simulation, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Simulation{
		pipeline:  opts.Pipeline,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		log:       log,
		observers: opts.Observers,
	}
	if s.pipeline == nil && opts.Backend != nil {
		s.pipeline = NewHostPipeline(opts.Backend)
	}
	if s.pipeline == nil {
		s.disabled.Store(true)
		log.Error("no compute pipeline bound, simulation disabled")
		return s, ErrNoPipeline
	}

	p, err := s.normalize(opts.Params)
	if err != nil {
		return nil, err
	}
	s.params = p
	s.current = p
	s.kernel = NewKernel(p.H)
	return s, nil
}

// Init checks the record layout, allocates the store and seeds it.
func (s *Simulation) Init(ctx context.Context) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckLayout(); err != nil {
		s.disabled.Store(true)
		s.log.Error("particle layout check failed", zap.Error(err))
		return err
	}

	s.store = NewStore(s.params.ParticleCount)
	if err := s.reseed(); err != nil {
		return err
	}
	s.initialized = true
	s.log.Info("simulation initialized",
		zap.String("pipeline", s.pipeline.Name()),
		zap.Int("particles", s.store.Len()),
		zap.Float64("h", s.params.H),
		zap.Int("substeps", s.params.Substeps))
	return nil
}

// Update advances one frame: apply queued commands, push uniforms, then run
// substeps x {density, forces, integrate}. force is consumed by this frame.
func (s *Simulation) Update(ctx context.Context, force ExternalForce) (FrameStats, error) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if err := s.usable(); err != nil {
		return FrameStats{}, err
	}
	if !s.initialized {
		return FrameStats{}, ErrNotInitialized
	}
	if err := s.drain(); err != nil {
		return FrameStats{}, err
	}

	stats := FrameStats{
		Frame:     s.frame,
		Particles: s.store.Len(),
		Substeps:  s.params.Substeps,
		Force:     force,
	}
	if err := s.pipeline.Push(s.uniforms(force)); err != nil {
		return stats, err
	}

	frameStart := time.Now()
	for sub := 0; sub < s.params.Substeps; sub++ {
		for _, stage := range Stages {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			start := time.Now()
			rejected, err := s.pipeline.Run(ctx, stage)
			stats.StageTime[stage] += time.Since(start)
			stats.Rejected += rejected
			if err != nil {
				return stats, &StageError{Stage: stage, Frame: s.frame, Substep: sub, Wrapped: err}
			}
		}
	}
	if sy, ok := s.pipeline.(Syncer); ok {
		if err := sy.Sync(); err != nil {
			return stats, err
		}
	}
	stats.Total = time.Since(frameStart)
	s.frame++

	for _, o := range s.observers {
		o.OnFrame(stats, s.store.Particles())
	}
	return stats, nil
}

// RunStage dispatches a single stage against the current store using the
// current parameters and force. It does not advance the frame counter.
func (s *Simulation) RunStage(ctx context.Context, stage Stage, force ExternalForce) (int, error) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	if err := s.pipeline.Push(s.uniforms(force)); err != nil {
		return 0, err
	}
	return s.pipeline.Run(ctx, stage)
}

// Submit queues a full parameter replacement for the next frame.
func (s *Simulation) Submit(p Params) error {
	if s.disabled.Load() {
		return ErrDisabled
	}
	p, err := s.normalize(p)
	if err != nil {
		return err
	}

	s.cmdMu.Lock()
	s.queued.params = &p
	s.cmdMu.Unlock()
	return nil
}

// Apply queues a partial parameter update keyed by recognized names. Updates
// stack on top of any replacement still waiting for the next frame.
func (s *Simulation) Apply(updates map[string]any) error {
	if s.disabled.Load() {
		return ErrDisabled
	}

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	base := s.current
	if s.queued.params != nil {
		base = *s.queued.params
	}
	next, err := base.Apply(updates)
	if err != nil {
		return err
	}
	next, err = s.normalize(next)
	if err != nil {
		return err
	}
	s.queued.params = &next
	return nil
}

// Reset schedules a reallocation and reseed at the start of the next frame.
func (s *Simulation) Reset() {
	s.cmdMu.Lock()
	s.queued.reset = true
	s.cmdMu.Unlock()
}

// BoundsOverride opens the simulation box to OpenBounds while open is true.
func (s *Simulation) BoundsOverride(open bool) {
	s.cmdMu.Lock()
	s.queued.boundsOpen = &open
	s.cmdMu.Unlock()
}

// Teardown releases the store and the pipeline. It waits for an in-flight
// Update to finish.
func (s *Simulation) Teardown() {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if s.tornDown {
		return
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	s.store = nil
	s.tornDown = true
	s.log.Info("simulation torn down", zap.Uint64("frames", s.frame))
}

// Particles returns the live particle array for rendering. It is only valid
// until the next Update and must not be modified concurrently with one.
func (s *Simulation) Particles() []Particle {
	if s.store == nil {
		return nil
	}
	return s.store.Particles()
}

// Snapshot returns a copy of the particle array.
func (s *Simulation) Snapshot() []Particle {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Clone()
}

// Params returns a copy of the parameters the next frame will use unless
// a queued change replaces them.
func (s *Simulation) Params() Params {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.params
}

func (s *Simulation) Kernel() Kernel {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.kernel
}

func (s *Simulation) Frame() uint64 {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frame
}

func (s *Simulation) PipelineName() string {
	if s.pipeline == nil {
		return "none"
	}
	return s.pipeline.Name()
}

// AddObserver registers o for frame notifications.
func (s *Simulation) AddObserver(o Observer) {
	s.frameMu.Lock()
	s.observers = append(s.observers, o)
	s.frameMu.Unlock()
}

func (s *Simulation) usable() error {
	if s.disabled.Load() {
		return ErrDisabled
	}
	if s.tornDown {
		return ErrTornDown
	}
	return nil
}

// drain applies queued commands. Called with frameMu held, so no stage is
// running against the store.
func (s *Simulation) drain() error {
	s.cmdMu.Lock()
	q := s.queued
	s.queued = pending{}
	if q.params != nil {
		s.current = *q.params
	}
	s.cmdMu.Unlock()

	if q.boundsOpen != nil {
		s.boundsOpen = *q.boundsOpen
	}

	if q.params != nil {
		next := *q.params
		if next.H != s.kernel.H {
			s.kernel = NewKernel(next.H)
			s.log.Info("kernel constants recomputed", zap.Float64("h", next.H))
		}
		if next.ParticleCount != s.store.Len() {
			q.reset = true
		}
		massChanged := next.ParticleMass != s.params.ParticleMass
		s.params = next
		s.log.Info("parameters applied", zap.Any("params", next))

		if massChanged && !q.reset {
			s.store.SetMass(float32(next.ParticleMass))
			if err := s.pipeline.Bind(s.store.Particles()); err != nil {
				return err
			}
		}
	}

	if q.reset {
		s.store.Allocate(s.params.ParticleCount)
		return s.reseed()
	}
	return nil
}

func (s *Simulation) reseed() error {
	s.store.Reseed(s.rng, s.params)
	if err := s.pipeline.Bind(s.store.Particles()); err != nil {
		return err
	}
	s.log.Info("particles reseeded", zap.Int("particles", s.store.Len()))
	return nil
}

func (s *Simulation) uniforms(force ExternalForce) Uniforms {
	p := s.params
	if s.boundsOpen {
		p.Bounds = OpenBounds
	}
	return p.Uniforms(s.kernel, force)
}

// normalize validates p and logs any clamped field.
func (s *Simulation) normalize(p Params) (Params, error) {
	v, err := p.Validate()
	if err != nil {
		return p, err
	}
	if v.ParticleCount != p.ParticleCount {
		s.log.Warn("particle count clamped", zap.Int("requested", p.ParticleCount), zap.Int("used", v.ParticleCount))
	}
	if v.Substeps != p.Substeps {
		s.log.Warn("substeps clamped", zap.Int("requested", p.Substeps), zap.Int("used", v.Substeps))
	}
	if v.Damping != p.Damping {
		s.log.Warn("damping clamped", zap.Float64("requested", p.Damping), zap.Float64("used", v.Damping))
	}
	return v, nil
}
