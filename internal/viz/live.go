package viz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/sphfluid/internal/camera"
	"github.com/san-kum/sphfluid/internal/controls"
	"github.com/san-kum/sphfluid/internal/export"
	"github.com/san-kum/sphfluid/internal/fluid"
	"github.com/san-kum/sphfluid/internal/metrics"
	"github.com/san-kum/sphfluid/internal/probe"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600

	// Cell offset of the canvas inside the view, from canvasStyle padding.
	canvasLeft = 2
	canvasTop  = 1

	rotateStep = 0.1
)

type TickMsg time.Time

// Options configures a live view.
type Options struct {
	Sim           *fluid.Simulation
	ProbeStrength float64
	OutputDir     string
	Logger        *zap.Logger
	// FPS caps the tick rate; zero means 60.
	FPS int
}

type pointer struct {
	x, y      int
	primary   bool
	secondary bool
}

// Model holds the simulation handle, camera, probe and UI state.
type Model struct {
	ctx      context.Context
	sim      *fluid.Simulation
	cam      *camera.Orbit
	probe    *probe.Probe
	recorder *metrics.Recorder
	canvas   *Canvas
	log      *zap.Logger

	outputDir string
	interval  time.Duration

	params   fluid.Params
	selected int
	running  bool
	open     bool
	pointer  pointer

	last   fluid.FrameStats
	err    error
	status string
}

// NewModel wires a live view to an initialized simulation. The model
// registers a bounded recorder as a frame observer.
func NewModel(ctx context.Context, opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	strength := opts.ProbeStrength
	if strength == 0 {
		strength = probe.DefaultStrength
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 60
	}

	params := opts.Sim.Params()
	rec := metrics.NewRecorder(historyCapacity)
	opts.Sim.AddObserver(rec)

	cam := camera.NewOrbit(3 * max(params.Bounds[0], params.Bounds[2]))

	return Model{
		ctx:       ctx,
		sim:       opts.Sim,
		cam:       cam,
		probe:     probe.New(strength),
		recorder:  rec,
		canvas:    NewCanvas(width, height),
		log:       log,
		outputDir: opts.OutputDir,
		interval:  time.Second / time.Duration(fps),
		params:    params,
		running:   true,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case TickMsg:
		if m.running {
			if err := m.step(); err != nil {
				if errors.Is(err, context.Canceled) {
					return m, tea.Quit
				}
				m.err = err
				m.running = false
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
		if m.running {
			m.err = nil
		}
	case "r":
		m.sim.Reset()
		m.recorder.Reset()
		m.status = "reset"
	case "b":
		m.open = !m.open
		m.sim.BoundsOverride(m.open)
	case "tab":
		m.selected = (m.selected + 1) % len(controls.Default)
	case "shift+tab":
		m.selected = (m.selected + len(controls.Default) - 1) % len(controls.Default)
	case "up":
		m.adjust(1)
	case "down":
		m.adjust(-1)
	case "left", "h":
		m.cam.Rotate(-rotateStep, 0)
	case "right", "l":
		m.cam.Rotate(rotateStep, 0)
	case "k":
		m.cam.Rotate(0, rotateStep)
	case "j":
		m.cam.Rotate(0, -rotateStep)
	case "+", "=":
		m.cam.Zoom(1)
	case "-", "_":
		m.cam.Zoom(-1)
	case "t":
		NextTheme()
	case "s":
		path, err := m.saveSVG()
		if err != nil {
			m.status = "snapshot failed: " + err.Error()
		} else {
			m.status = "saved " + path
		}
	}
	return m, nil
}

// adjust nudges the selected slider and queues the edited copy.
func (m *Model) adjust(steps float64) {
	c := controls.Default[m.selected]
	next := c.Nudge(m.params, steps)
	if err := m.sim.Submit(next); err != nil {
		m.status = err.Error()
		return
	}
	m.params = next
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	m.pointer.x, m.pointer.y = msg.X, msg.Y
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			m.pointer.primary = true
		case tea.MouseButtonRight:
			m.pointer.secondary = true
		case tea.MouseButtonWheelUp:
			m.cam.Zoom(1)
		case tea.MouseButtonWheelDown:
			m.cam.Zoom(-1)
		}
	case tea.MouseActionRelease:
		m.pointer.primary = false
		m.pointer.secondary = false
	}
}

// ProbeInput converts the pointer state to a probe input in canvas dot
// space.
func (m Model) ProbeInput() probe.Input {
	w, h := m.canvas.Dots()
	sx := float64((m.pointer.x-canvasLeft)*2 + 1)
	sy := float64((m.pointer.y-canvasTop)*4 + 2)
	return probe.Input{
		Primary:   m.pointer.primary,
		Secondary: m.pointer.secondary,
		Ray:       m.cam.ScreenRay(sx, sy, w, h),
		Forward:   m.cam.Forward(),
	}
}

func (m *Model) step() error {
	force := m.probe.Sample(m.ProbeInput())
	stats, err := m.sim.Update(m.ctx, force)
	if err != nil {
		return err
	}
	m.last = stats
	// Pick up changes submitted elsewhere, e.g. a config reload.
	m.params = m.sim.Params()
	return nil
}

func (m Model) saveSVG() (string, error) {
	dir := m.outputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	svg := export.ParticlesToSVG(m.sim.Snapshot(), m.cam, 800, 600, export.ColorBySpeed)
	path := filepath.Join(dir, fmt.Sprintf("sphfluid_%06d.svg", m.sim.Frame()))
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return "", err
	}
	m.log.Info("snapshot saved", zap.String("path", path))
	return path, nil
}

func (m *Model) draw() {
	m.canvas.Clear()
	bounds := m.params.Bounds
	if m.open {
		bounds = fluid.OpenBounds
	}
	m.canvas.DrawBox(m.cam, r3.Vec{X: bounds[0], Y: bounds[1], Z: bounds[2]})
	ps := m.sim.Particles()
	for i := range ps {
		p := &ps[i]
		m.canvas.Plot(m.cam, r3.Vec{X: float64(p.Position[0]), Y: float64(p.Position[1]), Z: float64(p.Position[2])})
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	m.draw()
	canvasView := canvasStyle.Render(particleStyle().Render(m.canvas.String()))

	var s strings.Builder
	s.WriteString(headerStyle().Render("SPH FLUID · "+strings.ToUpper(m.sim.PipelineName())) + "\n")

	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	if m.open {
		status += " · OPEN BOUNDS"
	}
	s.WriteString(statusStyle(m.running).Render(status) + "\n\n")

	energy := m.recorder.Series(func(x metrics.Sample) float64 { return x.KineticEnergy })
	if len(energy) > 1 {
		chart := asciigraph.Plot(energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Frame", fmt.Sprintf("%d", m.last.Frame))
	row("Particles", fmt.Sprintf("%d", m.last.Particles))
	row("Frame time", m.last.Total.Round(time.Microsecond).String())
	for _, st := range fluid.Stages {
		row("  "+st.String(), m.last.Stage(st).Round(time.Microsecond).String())
	}
	if last, ok := m.recorder.Last(); ok {
		row("Density", fmt.Sprintf("%.1f ± %.1f", last.DensityMean, last.DensityStdDev))
		row("Max speed", fmt.Sprintf("%.2f", last.MaxSpeed))
	}
	if m.last.Rejected > 0 {
		row("Rejected", fmt.Sprintf("%d", m.last.Rejected))
	}
	if m.last.Force.Active() {
		f := m.last.Force
		row("Probe", fmt.Sprintf("%+.1f @ (%.1f, %.1f, %.1f)", f.Magnitude, f.Point[0], f.Point[1], f.Point[2]))
	}
	frameTimes := m.recorder.Series(func(x metrics.Sample) float64 { return x.FrameSeconds })
	s.WriteString(labelStyle.Render("Timing") + SparklineChart(frameTimes, 30) + "\n")

	s.WriteString("\nPARAMETERS\n")
	for i, c := range controls.Default {
		line := fmt.Sprintf("%-10s %s %s", c.Name, SliderBar(c.Fraction(m.params), 10), c.Format(m.params))
		if i == m.selected {
			s.WriteString(activeStyle().Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.UnsetWidth().Render(line) + "\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		s.WriteString("\n" + valueStyle.Render(m.status) + "\n")
	}

	s.WriteString(helpStyle.Render("─────────────────────\nSP:Pause R:Reset B:Bounds Q:Quit\nTab ↑↓:Tune HJKL:Orbit +-:Zoom\nS:SVG T:Theme  drag L/R:Pull/Push"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}

// Run starts the live view and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
