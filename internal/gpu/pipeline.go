package gpu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"go.uber.org/zap"

	"github.com/san-kum/sphfluid/internal/fluid"
)

var ErrNotBound = errors.New("gpu: no particle buffer bound")

// Pipeline is a fluid.Pipeline backed by compute shaders. All methods must
// be called on the thread that owns the GL context.
type Pipeline struct {
	programs [len(fluid.Stages)]uint32
	ssbo     uint32
	counter  uint32

	particles []fluid.Particle
	n         int
	log       *zap.Logger
}

// New initialises the GL bindings and compiles the stage programs. It fails
// with fluid.ErrLayoutMismatch before touching GL if the host record layout
// is not the 48-byte std430 layout the shaders declare.
func New(log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := fluid.CheckLayout(); err != nil {
		return nil, err
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gpu: failed to init opengl: %w", err)
	}

	p := &Pipeline{log: log}
	for _, stage := range fluid.Stages {
		src, err := Source(stage)
		if err != nil {
			p.Release()
			return nil, err
		}
		prog, err := createComputeProgram(src)
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("gpu: %s: %w", stage, err)
		}
		p.programs[stage] = prog
	}

	gl.GenBuffers(1, &p.counter)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, p.counter)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, 4, nil, gl.DYNAMIC_READ)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 1, p.counter)

	var maxGroups, maxSize int32
	gl.GetIntegeri_v(gl.MAX_COMPUTE_WORK_GROUP_COUNT, 0, &maxGroups)
	gl.GetIntegeri_v(gl.MAX_COMPUTE_WORK_GROUP_SIZE, 0, &maxSize)
	log.Info("opengl compute initialized",
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.Int32("max_work_groups", maxGroups),
		zap.Int32("max_work_group_size", maxSize))

	return p, checkError("init")
}

func (p *Pipeline) Name() string { return "opengl" }

// Bind uploads particles into a freshly sized storage buffer. The slice is
// kept as the Sync destination.
func (p *Pipeline) Bind(particles []fluid.Particle) error {
	if p.ssbo == 0 {
		gl.GenBuffers(1, &p.ssbo)
	}
	p.particles = particles
	p.n = len(particles)

	size := p.n * fluid.ParticleStride
	var data unsafe.Pointer
	if p.n > 0 {
		data = unsafe.Pointer(&particles[0])
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, p.ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, data, gl.DYNAMIC_COPY)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 0, p.ssbo)

	p.log.Debug("particle buffer bound", zap.Int("particles", p.n), zap.Int("bytes", size))
	return checkError("bind")
}

// Push sets every recognized uniform on every stage program.
func (p *Pipeline) Push(u fluid.Uniforms) error {
	values := u.Map()
	for _, prog := range p.programs {
		for name, v := range values {
			if err := setUniform(prog, name, v); err != nil {
				return err
			}
		}
	}
	return checkError("push")
}

// Run dispatches stage over the bound buffer and waits on a storage
// barrier, so the next stage sees every write. Rejections are counted on
// the device during integration.
func (p *Pipeline) Run(ctx context.Context, stage fluid.Stage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.ssbo == 0 {
		return 0, ErrNotBound
	}

	if stage == fluid.StageIntegrate {
		var zero uint32
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, p.counter)
		gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, 4, gl.Ptr(&zero))
	}

	gl.UseProgram(p.programs[stage])
	gl.DispatchCompute(groups(p.n), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)

	rejected := 0
	if stage == fluid.StageIntegrate {
		var count uint32
		gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, p.counter)
		gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, 4, gl.Ptr(&count))
		rejected = int(count)
	}
	return rejected, checkError(stage.String())
}

// Sync copies the device buffer back into the bound slice.
func (p *Pipeline) Sync() error {
	if p.ssbo == 0 || p.n == 0 {
		return nil
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, p.ssbo)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, p.n*fluid.ParticleStride, unsafe.Pointer(&p.particles[0]))
	return checkError("sync")
}

// Buffer returns the storage buffer name, for renderers that draw straight
// from device memory.
func (p *Pipeline) Buffer() uint32 { return p.ssbo }

func (p *Pipeline) Release() {
	if p.ssbo != 0 {
		gl.DeleteBuffers(1, &p.ssbo)
		p.ssbo = 0
	}
	if p.counter != 0 {
		gl.DeleteBuffers(1, &p.counter)
		p.counter = 0
	}
	for i, prog := range p.programs {
		if prog != 0 {
			gl.DeleteProgram(prog)
			p.programs[i] = 0
		}
	}
	p.particles = nil
	p.n = 0
}

func setUniform(prog uint32, name string, v any) error {
	loc := gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
	if loc < 0 {
		// Declared but unused uniforms are compiled out.
		return nil
	}
	switch x := v.(type) {
	case float32:
		gl.ProgramUniform1f(prog, loc, x)
	case int32:
		gl.ProgramUniform1i(prog, loc, x)
	case [3]float32:
		gl.ProgramUniform3f(prog, loc, x[0], x[1], x[2])
	default:
		return fmt.Errorf("gpu: uniform %s has unsupported type %T", name, v)
	}
	return nil
}

func createComputeProgram(source string) (uint32, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile compute shader: %v", log)
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)
	gl.DeleteShader(shader)

	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	return program, nil
}

func checkError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gpu: %s: gl error 0x%x", op, code)
	}
	return nil
}
