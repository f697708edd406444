// Package gui is the raylib window front end: an orbit camera over the
// fluid box, instanced particle spheres, a slider panel and the mouse probe.
package gui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphfluid/internal/camera"
	"github.com/san-kum/sphfluid/internal/compute"
	"github.com/san-kum/sphfluid/internal/controls"
	"github.com/san-kum/sphfluid/internal/fluid"
	"github.com/san-kum/sphfluid/internal/gpu"
	"github.com/san-kum/sphfluid/internal/probe"
)

var (
	ColBg      = rl.NewColor(10, 10, 10, 255)
	ColAccent  = rl.NewColor(180, 180, 180, 255)
	ColSelect  = rl.NewColor(255, 255, 255, 255)
	ColText    = rl.NewColor(140, 140, 140, 255)
	ColTextDim = rl.NewColor(60, 60, 60, 255)
	ColBounds  = rl.NewColor(90, 90, 110, 255)
	ColFluid   = rl.NewColor(40, 150, 230, 255)
)

const (
	panelX, panelY = 20, 80
	panelWidth     = 260
	sliderHeight   = 20
	sliderSpacing  = 40

	telemetryCapacity = 200
)

// Options configures a window session.
type Options struct {
	Params        fluid.Params
	Backend       string
	Workers       int
	Seed          int64
	UseGPU        bool
	ProbeStrength float64
	Width, Height int32
	Logger        *zap.Logger
	Observers     []fluid.Observer
}

type App struct {
	sim      *fluid.Simulation
	cam      *camera.Orbit
	probe    *probe.Probe
	renderer *Renderer
	log      *zap.Logger

	width, height int32
	params        fluid.Params
	running       bool
	open          bool
	cursor        r3.Vec
	cursorActive  bool
	telemetry     []float64
	last          fluid.FrameStats
	err           error
}

func initWindow(w, h int32) {
	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(w, h, "sphfluid")
	rl.SetTargetFPS(60)
	rl.SetExitKey(0)
}

// Run opens the window and drives the simulation from the render loop until
// the window closes or ctx ends. The GPU pipeline needs the window's GL
// context, so everything runs on one locked OS thread.
func Run(ctx context.Context, opts Options) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1280, 720
	}

	initWindow(opts.Width, opts.Height)
	defer rl.CloseWindow()

	sim, err := newSimulation(opts, log)
	if err != nil {
		return err
	}
	if err := sim.Init(ctx); err != nil {
		sim.Teardown()
		return err
	}
	defer sim.Teardown()

	app := NewApp(sim, opts, log)
	defer app.renderer.Unload()

	for !rl.WindowShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		app.Update(ctx)
		app.Draw()
	}
	return nil
}

// newSimulation prefers the GPU pipeline when asked and falls back to the
// named CPU backend if it cannot start.
func newSimulation(opts Options, log *zap.Logger) (*fluid.Simulation, error) {
	simOpts := fluid.Options{
		Params:    opts.Params,
		Seed:      opts.Seed,
		Logger:    log,
		Observers: opts.Observers,
	}
	if opts.UseGPU {
		pl, err := gpu.New(log)
		if err == nil {
			simOpts.Pipeline = pl
			return fluid.New(simOpts)
		}
		if errors.Is(err, fluid.ErrLayoutMismatch) {
			return nil, err
		}
		log.Warn("gpu pipeline unavailable, falling back to cpu", zap.Error(err))
	}
	backend, err := compute.New(opts.Backend, opts.Workers)
	if err != nil {
		return nil, err
	}
	simOpts.Backend = backend
	return fluid.New(simOpts)
}

func NewApp(sim *fluid.Simulation, opts Options, log *zap.Logger) *App {
	params := sim.Params()
	strength := opts.ProbeStrength
	if strength == 0 {
		strength = probe.DefaultStrength
	}
	return &App{
		sim:       sim,
		cam:       camera.NewOrbit(3 * math.Max(params.Bounds[0], params.Bounds[2])),
		probe:     probe.New(strength),
		renderer:  NewRenderer(float32(params.H / 4)),
		log:       log,
		width:     opts.Width,
		height:    opts.Height,
		params:    params,
		running:   true,
		telemetry: make([]float64, 0, telemetryCapacity),
	}
}

// Update handles input and advances one frame.
func (a *App) Update(ctx context.Context) {
	a.width, a.height = int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())

	if rl.IsKeyPressed(rl.KeySpace) {
		a.running = !a.running
	}
	if rl.IsKeyPressed(rl.KeyR) {
		a.sim.Reset()
		a.telemetry = a.telemetry[:0]
	}
	if open := rl.IsKeyDown(rl.KeyB); open != a.open {
		a.open = open
		a.sim.BoundsOverride(open)
	}

	a.updateCamera()
	force := a.sampleProbe()

	if !a.running {
		return
	}
	stats, err := a.sim.Update(ctx, force)
	if err != nil {
		a.err = err
		a.running = false
		a.log.Error("frame failed", zap.Error(err))
		return
	}
	a.last = stats
	a.telemetry = append(a.telemetry, stats.Total.Seconds()*1000)
	if len(a.telemetry) > telemetryCapacity {
		a.telemetry = a.telemetry[1:]
	}
}

func (a *App) updateCamera() {
	dt := rl.GetFrameTime()
	step := float64(1.5 * dt)
	if rl.IsKeyDown(rl.KeyLeft) || rl.IsKeyDown(rl.KeyA) {
		a.cam.Rotate(-step, 0)
	}
	if rl.IsKeyDown(rl.KeyRight) || rl.IsKeyDown(rl.KeyD) {
		a.cam.Rotate(step, 0)
	}
	if rl.IsKeyDown(rl.KeyUp) || rl.IsKeyDown(rl.KeyW) {
		a.cam.Rotate(0, step)
	}
	if rl.IsKeyDown(rl.KeyDown) || rl.IsKeyDown(rl.KeyS) {
		a.cam.Rotate(0, -step)
	}
	if rl.IsMouseButtonDown(rl.MouseMiddleButton) {
		delta := rl.GetMouseDelta()
		a.cam.Rotate(float64(-delta.X)*0.005, float64(delta.Y)*0.005)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		a.cam.Zoom(float64(wheel))
	}
}

func (a *App) sampleProbe() fluid.ExternalForce {
	mouse := rl.GetMousePosition()
	in := probe.Input{
		Primary:   rl.IsMouseButtonDown(rl.MouseLeftButton),
		Secondary: rl.IsMouseButtonDown(rl.MouseRightButton),
		Ray:       a.cam.ScreenRay(float64(mouse.X), float64(mouse.Y), int(a.width), int(a.height)),
		Forward:   a.cam.Forward(),
	}
	if inPanel(mouse.X, mouse.Y) {
		in.Primary, in.Secondary = false, false
	}
	force := a.probe.Sample(in)
	a.cursorActive = force.Active()
	if a.cursorActive {
		a.cursor = r3.Vec{X: float64(force.Point[0]), Y: float64(force.Point[1]), Z: float64(force.Point[2])}
	}
	return force
}

// inPanel reports whether a screen point is over the slider panel.
func inPanel(x, y float32) bool {
	h := float32(len(controls.Default)*sliderSpacing + 20)
	return x >= panelX-10 && x <= panelX+panelWidth+60 && y >= panelY-10 && y <= panelY+h
}

func (a *App) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(ColBg)

	rl.BeginMode3D(toCamera3D(a.cam))
	bounds := a.params.Bounds
	if a.open {
		bounds = fluid.OpenBounds
	}
	DrawBounds(bounds, ColBounds)
	a.renderer.Draw(a.sim.Particles())
	if a.cursorActive {
		pos := rl.NewVector3(float32(a.cursor.X), float32(a.cursor.Y), float32(a.cursor.Z))
		rl.DrawSphereWires(pos, 0.15, 6, 6, rl.NewColor(255, 255, 255, 120))
	}
	rl.EndMode3D()

	a.drawPanel()
	a.DrawHUD()
	rl.EndDrawing()
}

// drawPanel renders the parameter sliders and queues any change.
func (a *App) drawPanel() {
	next := a.params
	y := float32(panelY)
	for _, c := range controls.Default {
		rl.DrawText(c.Name, panelX, int32(y), 14, ColText)
		cur := float32(c.Get(next))
		v := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: y + 16, Width: panelWidth, Height: sliderHeight},
			"", "",
			cur, float32(c.Min), float32(c.Max),
		)
		rl.DrawText(c.Format(next), panelX+panelWidth+10, int32(y+18), 14, ColAccent)
		if v != cur {
			next = c.With(next, float64(v))
		}
		y += sliderSpacing
	}
	if next == a.params {
		return
	}
	if err := a.sim.Submit(next); err != nil {
		a.log.Warn("parameter update rejected", zap.Error(err))
		return
	}
	a.params = next
}

func (a *App) DrawHUD() {
	rl.DrawText("sphfluid", 20, 20, 24, ColSelect)
	rl.DrawText(fmt.Sprintf(":: %s  %d particles", a.sim.PipelineName(), a.last.Particles), 140, 26, 16, ColText)

	status, col := "RUNNING", ColSelect
	if !a.running {
		status, col = "PAUSED", ColTextDim
	}
	if a.open {
		status += "  OPEN"
	}
	rl.DrawText(status, a.width-160, 20, 16, col)

	a.drawTelemetry()

	if a.err != nil {
		rl.DrawText(a.err.Error(), 20, a.height-70, 14, rl.Red)
	}
	rl.DrawText("[SPACE] PAUSE  [R] RESET  [B] HOLD OPEN  [LMB/RMB] PULL/PUSH  [ARROWS] ORBIT", 20, a.height-30, 14, ColTextDim)
	rl.DrawText(fmt.Sprintf("%d FPS", rl.GetFPS()), a.width-100, a.height-30, 14, ColTextDim)
}

func (a *App) drawTelemetry() {
	if len(a.telemetry) < 2 {
		return
	}
	rectX, rectY := float32(a.width-420), float32(60)
	width, height := float32(400), float32(60)

	lo, hi := a.telemetry[0], a.telemetry[0]
	for _, v := range a.telemetry {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}

	points := make([]rl.Vector2, len(a.telemetry))
	for i, val := range a.telemetry {
		px := rectX + float32(i)/float32(len(a.telemetry))*width
		py := rectY + height - float32((val-lo)/(hi-lo))*height
		points[i] = rl.NewVector2(px, py)
	}
	rl.DrawLineStrip(points, ColAccent)
	rl.DrawText(fmt.Sprintf("frame %.2f ms", a.telemetry[len(a.telemetry)-1]), int32(rectX), int32(rectY+height+6), 14, ColText)
}

// toCamera3D mirrors the orbit camera into raylib's camera.
func toCamera3D(o *camera.Orbit) rl.Camera3D {
	pos := o.Position()
	return rl.NewCamera3D(
		rl.NewVector3(float32(pos.X), float32(pos.Y), float32(pos.Z)),
		rl.NewVector3(float32(o.Target.X), float32(o.Target.Y), float32(o.Target.Z)),
		rl.NewVector3(0, 1, 0),
		float32(o.FOV*180/math.Pi),
		rl.CameraPerspective,
	)
}
