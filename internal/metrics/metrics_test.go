package metrics

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/sphfluid/internal/fluid"
)

func particles() []fluid.Particle {
	return []fluid.Particle{
		{Velocity: [3]float32{3, 4, 0}, Mass: 2, Density: 900},
		{Velocity: [3]float32{0, 0, 1}, Mass: 1, Density: 1100},
	}
}

func TestKineticEnergy(t *testing.T) {
	// ½·2·25 + ½·1·1
	want := 25.5
	if got := KineticEnergyOf(particles()); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}

	k := NewKineticEnergy()
	k.Observe(fluid.FrameStats{}, particles())
	k.Observe(fluid.FrameStats{}, nil)
	if math.Abs(k.Value()-want/2) > 1e-9 {
		t.Errorf("expected mean %f, got %f", want/2, k.Value())
	}
	k.Reset()
	if k.Value() != 0 {
		t.Errorf("expected 0 after reset, got %f", k.Value())
	}
}

func TestMaxSpeed(t *testing.T) {
	m := NewMaxSpeed()
	m.Observe(fluid.FrameStats{}, particles())
	if math.Abs(m.Value()-5) > 1e-9 {
		t.Errorf("expected 5, got %f", m.Value())
	}
}

func TestStability(t *testing.T) {
	s := NewStability(4)
	if s.Value() != 1 {
		t.Errorf("expected 1 before samples, got %f", s.Value())
	}
	s.Observe(fluid.FrameStats{}, particles())
	s.Observe(fluid.FrameStats{}, particles()[1:])
	s.Observe(fluid.FrameStats{Rejected: 1}, nil)
	if math.Abs(s.Value()-1.0/3) > 1e-9 {
		t.Errorf("expected 1/3, got %f", s.Value())
	}
}

func TestDensityStats(t *testing.T) {
	ds := DensityStatsOf(Densities(particles(), nil))
	if ds.Mean != 1000 || ds.Min != 900 || ds.Max != 1100 {
		t.Errorf("unexpected stats: %+v", ds)
	}
	if math.Abs(ds.StdDev-math.Sqrt(20000)) > 1e-6 {
		t.Errorf("expected stddev %f, got %f", math.Sqrt(20000), ds.StdDev)
	}

	single := DensityStatsOf([]float64{5})
	if single.StdDev != 0 {
		t.Errorf("expected zero stddev for one sample, got %f", single.StdDev)
	}

	d := NewDensityError(800)
	d.Observe(fluid.FrameStats{}, particles())
	if math.Abs(d.Value()-0.25) > 1e-9 {
		t.Errorf("expected 0.25, got %f", d.Value())
	}
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(3, NewKineticEnergy())
	for i := 0; i < 5; i++ {
		r.OnFrame(fluid.FrameStats{Frame: uint64(i), Total: time.Millisecond}, particles())
	}
	samples := r.Samples()
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0].Frame != 2 || samples[2].Frame != 4 {
		t.Errorf("expected frames 2..4, got %d..%d", samples[0].Frame, samples[2].Frame)
	}
	if samples[2].FrameSeconds != 0.001 {
		t.Errorf("expected 0.001s, got %f", samples[2].FrameSeconds)
	}

	series := r.Series(func(s Sample) float64 { return s.KineticEnergy })
	if len(series) != 3 || series[0] != 25.5 {
		t.Errorf("unexpected series %v", series)
	}
	if v := r.Values()["kinetic_energy"]; v != 25.5 {
		t.Errorf("expected kinetic_energy 25.5, got %f", v)
	}

	r.Reset()
	if _, ok := r.Last(); ok {
		t.Error("expected no samples after reset")
	}
}

func TestExporter(t *testing.T) {
	e := NewExporter()
	stats := fluid.FrameStats{Total: 2 * time.Millisecond, Rejected: 2}
	stats.StageTime[fluid.StageDensity] = time.Millisecond
	e.OnFrame(stats, particles())
	e.OnFrame(fluid.FrameStats{}, particles())

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{
		"sphfluid_frames_total 2",
		"sphfluid_rejected_updates_total 2",
		"sphfluid_particles 2",
		`sphfluid_stage_seconds_count{stage="integrate"} 2`,
		"sphfluid_kinetic_energy 25.5",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}
