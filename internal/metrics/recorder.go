package metrics

import (
	"sync"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// Sample is the per-frame diagnostic row.
type Sample struct {
	Frame         uint64  `csv:"frame" json:"frame"`
	Particles     int     `csv:"particles" json:"particles"`
	KineticEnergy float64 `csv:"kinetic_energy" json:"kinetic_energy"`
	MaxSpeed      float64 `csv:"max_speed" json:"max_speed"`
	DensityMean   float64 `csv:"density_mean" json:"density_mean"`
	DensityStdDev float64 `csv:"density_stddev" json:"density_stddev"`
	DensityMin    float64 `csv:"density_min" json:"density_min"`
	DensityMax    float64 `csv:"density_max" json:"density_max"`
	FrameSeconds  float64 `csv:"frame_seconds" json:"frame_seconds"`
	Rejected      int     `csv:"rejected" json:"rejected"`
}

// Measure computes the diagnostic row for one frame.
func Measure(stats fluid.FrameStats, particles []fluid.Particle, buf []float64) (Sample, []float64) {
	buf = Densities(particles, buf)
	ds := DensityStatsOf(buf)

	maxSpeed := 0.0
	for i := range particles {
		if s := particles[i].Speed(); s > maxSpeed {
			maxSpeed = s
		}
	}
	return Sample{
		Frame:         stats.Frame,
		Particles:     len(particles),
		KineticEnergy: KineticEnergyOf(particles),
		MaxSpeed:      maxSpeed,
		DensityMean:   ds.Mean,
		DensityStdDev: ds.StdDev,
		DensityMin:    ds.Min,
		DensityMax:    ds.Max,
		FrameSeconds:  stats.Total.Seconds(),
		Rejected:      stats.Rejected,
	}, buf
}

// Recorder is a frame observer that keeps a bounded history of samples and
// feeds a set of metrics.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	samples []Sample
	metrics []Metric
	buf     []float64
}

// NewRecorder keeps at most limit samples; zero keeps everything.
func NewRecorder(limit int, metrics ...Metric) *Recorder {
	return &Recorder{limit: limit, metrics: metrics}
}

func (r *Recorder) OnFrame(stats fluid.FrameStats, particles []fluid.Particle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Sample
	s, r.buf = Measure(stats, particles, r.buf)
	r.samples = append(r.samples, s)
	if r.limit > 0 && len(r.samples) > r.limit {
		r.samples = append(r.samples[:0], r.samples[len(r.samples)-r.limit:]...)
	}
	for _, m := range r.metrics {
		m.Observe(stats, particles)
	}
}

func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

func (r *Recorder) Last() (Sample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == 0 {
		return Sample{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// Series extracts one column of the history, oldest first.
func (r *Recorder) Series(field func(Sample) float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.samples))
	for i, s := range r.samples {
		out[i] = field(s)
	}
	return out
}

// Values reports every metric by name.
func (r *Recorder) Values() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	for _, m := range r.metrics {
		m.Reset()
	}
}
