package gpu

import (
	"embed"
	"fmt"
	"regexp"
	"sort"

	"github.com/san-kum/sphfluid/internal/fluid"
)

//go:embed shaders/*.comp shaders/*.glsl
var shaderFS embed.FS

const glslVersion = "#version 430 core\n"

// WorkGroupSize matches local_size_x in every stage shader.
const WorkGroupSize = 256

var stageFiles = [len(fluid.Stages)]string{
	fluid.StageDensity:   "shaders/density.comp",
	fluid.StageForces:    "shaders/forces.comp",
	fluid.StageIntegrate: "shaders/integrate.comp",
}

// Source returns the complete GLSL source for stage: version line, shared
// declarations, then the stage body.
func Source(stage fluid.Stage) (string, error) {
	if int(stage) < 0 || int(stage) >= len(stageFiles) {
		return "", fmt.Errorf("gpu: unknown stage %d", stage)
	}
	common, err := shaderFS.ReadFile("shaders/common.glsl")
	if err != nil {
		return "", err
	}
	body, err := shaderFS.ReadFile(stageFiles[stage])
	if err != nil {
		return "", err
	}
	return glslVersion + string(common) + "\n" + string(body), nil
}

var uniformDecl = regexp.MustCompile(`(?m)^uniform\s+\w+\s+(\w+)\s*;`)

// UniformNames lists the uniforms declared in src, sorted.
func UniformNames(src string) []string {
	var names []string
	for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

var structDecl = regexp.MustCompile(`(?s)struct Particle \{(.*?)\};`)
var (
	floatField = regexp.MustCompile(`\bfloat\b([^;]*);`)
	ident      = regexp.MustCompile(`\w+`)
)

// RecordFloats counts the float fields of the GLSL Particle struct in src.
func RecordFloats(src string) int {
	m := structDecl.FindStringSubmatch(src)
	if m == nil {
		return 0
	}
	n := 0
	for _, f := range floatField.FindAllStringSubmatch(m[1], -1) {
		n += len(ident.FindAllString(f[1], -1))
	}
	return n
}

// groups is the dispatch size covering n particles.
func groups(n int) uint32 {
	return uint32((n + WorkGroupSize - 1) / WorkGroupSize)
}
