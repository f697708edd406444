package gui

import (
	_ "embed"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/san-kum/sphfluid/internal/fluid"
)

var (
	//go:embed shaders/particle.vs
	particleVS string
	//go:embed shaders/particle.fs
	particleFS string
)

// Renderer draws one low-poly sphere per particle in a single instanced
// call. Without a usable instancing shader it falls back to points.
type Renderer struct {
	mesh       rl.Mesh
	material   rl.Material
	shader     rl.Shader
	colorLoc   int32
	transforms []rl.Matrix
	instanced  bool
}

// NewRenderer must be called after the window is created.
func NewRenderer(radius float32) *Renderer {
	r := &Renderer{mesh: rl.GenMeshSphere(radius, 6, 8)}

	r.shader = rl.LoadShaderFromMemory(particleVS, particleFS)
	if r.shader.ID == 0 {
		return r
	}
	r.shader.UpdateLocation(rl.ShaderLocMatrixMvp, rl.GetShaderLocation(r.shader, "mvp"))
	r.shader.UpdateLocation(rl.ShaderLocMatrixModel, rl.GetShaderLocationAttrib(r.shader, "instanceTransform"))
	r.colorLoc = rl.GetShaderLocation(r.shader, "fluidColor")

	r.material = rl.LoadMaterialDefault()
	r.material.Shader = r.shader
	r.SetColor(ColFluid)
	r.instanced = true
	return r
}

func (r *Renderer) SetColor(c rl.Color) {
	if r.shader.ID == 0 {
		return
	}
	v := []float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
	rl.SetShaderValue(r.shader, r.colorLoc, v, rl.ShaderUniformVec4)
}

// Draw must be called inside BeginMode3D.
func (r *Renderer) Draw(particles []fluid.Particle) {
	if !r.instanced {
		for i := range particles {
			rl.DrawPoint3D(position(&particles[i]), ColFluid)
		}
		return
	}
	r.transforms = instanceTransforms(particles, r.transforms[:0])
	if len(r.transforms) == 0 {
		return
	}
	rl.DrawMeshInstanced(r.mesh, r.material, r.transforms, len(r.transforms))
}

func (r *Renderer) Unload() {
	rl.UnloadMesh(&r.mesh)
	if r.shader.ID != 0 {
		rl.UnloadShader(r.shader)
	}
}

func instanceTransforms(particles []fluid.Particle, dst []rl.Matrix) []rl.Matrix {
	for i := range particles {
		p := &particles[i]
		dst = append(dst, rl.MatrixTranslate(p.Position[0], p.Position[1], p.Position[2]))
	}
	return dst
}

func position(p *fluid.Particle) rl.Vector3 {
	return rl.NewVector3(p.Position[0], p.Position[1], p.Position[2])
}

// DrawBounds draws the simulation box wireframe.
func DrawBounds(half fluid.Vec3, col rl.Color) {
	rl.DrawCubeWires(rl.NewVector3(0, 0, 0),
		float32(2*half[0]), float32(2*half[1]), float32(2*half[2]), col)
}
