package gpu

import (
	"strings"
	"testing"

	"github.com/san-kum/sphfluid/internal/fluid"
)

func TestSourcesAssemble(t *testing.T) {
	for _, stage := range fluid.Stages {
		src, err := Source(stage)
		if err != nil {
			t.Fatalf("%s: %v", stage, err)
		}
		if !strings.HasPrefix(src, "#version 430") {
			t.Errorf("%s: missing version line", stage)
		}
		if !strings.Contains(src, "local_size_x = 256") {
			t.Errorf("%s: work group size drifted from %d", stage, WorkGroupSize)
		}
	}
	if _, err := Source(fluid.Stage(99)); err == nil {
		t.Error("expected error for unknown stage")
	}
}

func TestRecordMatchesParticleStride(t *testing.T) {
	src, err := Source(fluid.StageDensity)
	if err != nil {
		t.Fatal(err)
	}
	if got := RecordFloats(src) * 4; got != fluid.ParticleStride {
		t.Errorf("GLSL record is %d bytes, Particle is %d", got, fluid.ParticleStride)
	}
}

func TestUniformsAreRecognized(t *testing.T) {
	known := fluid.DefaultParams().Uniforms(fluid.NewKernel(0.4), fluid.ExternalForce{}).Map()
	src, err := Source(fluid.StageForces)
	if err != nil {
		t.Fatal(err)
	}
	names := UniformNames(src)
	if len(names) != len(known) {
		t.Errorf("shader declares %d uniforms, host pushes %d", len(names), len(known))
	}
	for _, name := range names {
		if _, ok := known[name]; !ok {
			t.Errorf("uniform %q is not pushed by the host", name)
		}
	}
}

func TestGroups(t *testing.T) {
	cases := map[int]uint32{1: 1, 256: 1, 257: 2, 4096: 16}
	for n, want := range cases {
		if got := groups(n); got != want {
			t.Errorf("groups(%d) = %d, want %d", n, got, want)
		}
	}
}
