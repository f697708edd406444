package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/sphfluid/internal/automation"
	"github.com/san-kum/sphfluid/internal/bench"
	"github.com/san-kum/sphfluid/internal/camera"
	"github.com/san-kum/sphfluid/internal/compute"
	"github.com/san-kum/sphfluid/internal/config"
	"github.com/san-kum/sphfluid/internal/export"
	"github.com/san-kum/sphfluid/internal/fluid"
	"github.com/san-kum/sphfluid/internal/gui"
	"github.com/san-kum/sphfluid/internal/logger"
	"github.com/san-kum/sphfluid/internal/metrics"
	"github.com/san-kum/sphfluid/internal/storage"
	"github.com/san-kum/sphfluid/internal/viz"
)

var (
	dataDir     string
	configFile  string
	preset      string
	backendName string
	workers     int
	seed        int64
	count       int
	frames      int
	logLevel    string
	metricsAddr string
	// Live view
	frameRate int
	watch     bool
	strength  float64
	theme     string
	// Window
	useGPU        bool
	width, height int32
	// Bench
	benchStart, benchStep, benchMax int
	benchSettle                     int
	benchOut, benchCSV              string
	// Exports
	outPath   string
	colorMode string
	field     string
	// Sweep
	sweepParam         string
	sweepMin, sweepMax float64
	sweepSteps         int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "sphfluid",
		Short:        "particle fluid simulator",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to the window when no command is given.
			return runGUI(cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".sphfluid", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "parameter preset ("+strings.Join(config.ListPresets(), ", ")+")")
	pf.StringVar(&backendName, "backend", config.DefaultBackend, "cpu backend ("+strings.Join(compute.Names(), ", ")+")")
	pf.IntVar(&workers, "workers", 0, "worker goroutines (0 = all cpus)")
	pf.Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	pf.IntVar(&count, "count", 0, "particle count override")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	rootCmd.Flags().BoolVar(&useGPU, "gpu", false, "run stages as OpenGL compute shaders")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation and store the results",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to simulate")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the simulation in a terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().BoolVar(&watch, "watch", false, "reload params when the config file changes")
	liveCmd.Flags().Float64Var(&strength, "strength", config.DefaultProbeStrength, "probe force magnitude")
	liveCmd.Flags().StringVar(&theme, "theme", "ocean", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	guiCmd := &cobra.Command{
		Use:   "gui",
		Short: "run the simulation in a window",
		Args:  cobra.NoArgs,
		RunE:  runGUI,
	}
	guiCmd.Flags().BoolVar(&useGPU, "gpu", false, "run stages as OpenGL compute shaders")
	guiCmd.Flags().Int32Var(&width, "width", 1280, "window width")
	guiCmd.Flags().Int32Var(&height, "height", 720, "window height")
	guiCmd.Flags().Float64Var(&strength, "strength", config.DefaultProbeStrength, "probe force magnitude")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure frame time across particle counts",
		Args:  cobra.NoArgs,
		RunE:  runBench,
	}
	benchCmd.Flags().IntVar(&benchStart, "start", 1024, "first particle count")
	benchCmd.Flags().IntVar(&benchStep, "step", 1024, "particle count increment")
	benchCmd.Flags().IntVar(&benchMax, "max", 68000, "largest particle count")
	benchCmd.Flags().IntVar(&frames, "frames", 2000, "timed frames per run")
	benchCmd.Flags().IntVar(&benchSettle, "settle", 100, "untimed frames before each run")
	benchCmd.Flags().StringVar(&benchOut, "out", "benchmark.log", "result log file")
	benchCmd.Flags().StringVar(&benchCSV, "csv", "", "also write results as CSV")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a per-frame diagnostic",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&field, "field", "kinetic_energy", "column to plot ("+strings.Join(sampleFields(), ", ")+")")
	plotCmd.Flags().StringVarP(&outPath, "out", "o", "", "also write the chart as SVG")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the final particle snapshot to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>_particles.csv)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and frames to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the final particle snapshot to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().StringVar(&colorMode, "color", "speed", "color particles by speed or density")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list parameter presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the resolved configuration, or write it with init",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "write a config file with the resolved settings",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	})

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "play a scripted scenario and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter and compare diagnostics",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "viscosityConstant", "parameter name")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 8, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&frames, "frames", 200, "frames per value")

	rootCmd.AddCommand(runCmd, liveCmd, guiCmd, benchCmd, listCmd, showCmd, plotCmd,
		exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, configCmd, scenarioCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves defaults, the config file, the preset and flags, in
// that order of increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if preset != "" {
		p, ok := config.GetPreset(preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Preset = preset
		cfg.Params = p
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("count") {
		cfg.Params.ParticleCount = count
	}
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if flags.Changed("strength") {
		cfg.ProbeStrength = strength
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg.Validate()
}

// newLogger builds the command logger. Interactive views log to a file
// unless the config names one, so the screen stays clean.
func newLogger(cfg *config.Config, interactive bool) (*zap.Logger, error) {
	out := cfg.Log.Output
	if interactive && (out == "" || out == "stderr" || out == "stdout") {
		out = filepath.Join(dataDir, "sphfluid.log")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, err
		}
	}
	return logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
		Output:   out,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startExporter serves Prometheus metrics when an address is configured and
// returns the exporter as a frame observer.
func startExporter(ctx context.Context, cfg *config.Config, log *zap.Logger) []fluid.Observer {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	exp := metrics.NewExporter()
	go func() {
		if err := exp.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return []fluid.Observer{exp}
}

func newSimulation(ctx context.Context, cfg *config.Config, log *zap.Logger, observers ...fluid.Observer) (*fluid.Simulation, error) {
	backend, err := compute.New(cfg.Backend, cfg.Workers)
	if err != nil {
		return nil, err
	}
	sim, err := fluid.New(fluid.Options{
		Params:    cfg.Params,
		Backend:   backend,
		Seed:      cfg.Seed,
		Logger:    log,
		Observers: observers,
	})
	if err != nil {
		return nil, err
	}
	if err := sim.Init(ctx); err != nil {
		sim.Teardown()
		return nil, err
	}
	return sim, nil
}

func speedLimit(p fluid.Params) float64 {
	return p.Bounds[1] / p.DeltaTime
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	rec := metrics.NewRecorder(0, metrics.Default(cfg.Params.RestDensity, speedLimit(cfg.Params))...)
	sim, err := newSimulation(ctx, cfg, log, append(startExporter(ctx, cfg, log), rec)...)
	if err != nil {
		return err
	}
	defer sim.Teardown()

	fmt.Printf("running %d particles for %d frames on %s...\n", cfg.Params.ParticleCount, cfg.Frames, sim.PipelineName())
	start := time.Now()
	done := 0
	for ; done < cfg.Frames; done++ {
		if _, err := sim.Update(ctx, fluid.ExternalForce{}); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Printf("interrupted after %d frames\n", done)
				break
			}
			return err
		}
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.Run{
		Meta: storage.RunMetadata{
			Preset:  cfg.Preset,
			Backend: sim.PipelineName(),
			Seed:    cfg.Seed,
			Frames:  done,
			Params:  sim.Params(),
			Metrics: rec.Values(),
		},
		Samples:   rec.Samples(),
		Particles: sim.Snapshot(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", done)
	fmt.Println("\nmetrics:")
	printMetrics(rec.Values())
	return nil
}

func printMetrics(values map[string]float64) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range sortedKeys(values) {
		fmt.Fprintf(w, "  %s\t%.6g\n", name, values[name])
	}
	w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	sim, err := newSimulation(ctx, cfg, log, startExporter(ctx, cfg, log)...)
	if err != nil {
		return err
	}
	defer sim.Teardown()

	if watch {
		if configFile == "" {
			return errors.New("--watch needs --config")
		}
		w, err := config.NewWatcher(configFile, log, func(next *config.Config) {
			if err := sim.Submit(next.Params); err != nil {
				log.Warn("reloaded params rejected", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	viz.SetTheme(theme)
	return viz.Run(ctx, viz.Options{
		Sim:           sim,
		ProbeStrength: cfg.ProbeStrength,
		OutputDir:     cfg.OutputDir,
		Logger:        log,
		FPS:           frameRate,
	})
}

func runGUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	if width == 0 || height == 0 {
		width, height = 1280, 720
	}
	return gui.Run(ctx, gui.Options{
		Params:        cfg.Params,
		Backend:       cfg.Backend,
		Workers:       cfg.Workers,
		Seed:          cfg.Seed,
		UseGPU:        useGPU,
		ProbeStrength: cfg.ProbeStrength,
		Width:         width,
		Height:        height,
		Logger:        log,
		Observers:     startExporter(ctx, cfg, log),
	})
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	schedule := bench.Schedule{
		Start:        cfg.Bench.Start,
		Step:         cfg.Bench.Step,
		Max:          cfg.Bench.Max,
		Frames:       cfg.Bench.Frames,
		SettleFrames: cfg.Bench.SettleFrames,
	}
	flags := cmd.Flags()
	if flags.Changed("start") {
		schedule.Start = benchStart
	}
	if flags.Changed("step") {
		schedule.Step = benchStep
	}
	if flags.Changed("max") {
		schedule.Max = benchMax
	}
	if flags.Changed("frames") {
		schedule.Frames = frames
	}
	if flags.Changed("settle") {
		schedule.SettleFrames = benchSettle
	}
	out := cfg.Bench.Output
	if flags.Changed("out") || out == "" {
		out = benchOut
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	p := cfg.Params
	p.ParticleCount = schedule.Start
	cfg.Params = p
	sim, err := newSimulation(ctx, cfg, log, startExporter(ctx, cfg, log)...)
	if err != nil {
		return err
	}
	defer sim.Teardown()

	fmt.Printf("benchmarking %s: %d to %d particles, %d frames each\n", sim.PipelineName(), schedule.Start, schedule.Max, schedule.Frames)
	runner := &bench.Runner{Schedule: schedule, Log: f, Logger: log}
	results, err := runner.Run(ctx, sim)
	for _, r := range results {
		fmt.Println(r.Line())
	}
	if len(results) > 1 {
		fmt.Println()
		fmt.Println(bench.Plot(results))
	}
	if benchCSV != "" && len(results) > 0 {
		cf, cerr := os.Create(benchCSV)
		if cerr != nil {
			return cerr
		}
		defer cf.Close()
		if cerr := bench.WriteCSV(cf, results); cerr != nil {
			return cerr
		}
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("interrupted")
		return nil
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tPRESET\tBACKEND\tPARTICLES\tFRAMES\tSEED")
	for _, run := range runs {
		name := run.Preset
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			name,
			run.Backend,
			run.Particles,
			run.Frames,
			run.Seed,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("time: %s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Printf("backend: %s\n", meta.Backend)
	fmt.Printf("particles: %d  frames: %d  seed: %d\n\n", meta.Particles, meta.Frames, meta.Seed)

	data, err := yaml.Marshal(meta.Params)
	if err != nil {
		return err
	}
	fmt.Println("params:")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println("\nmetrics:")
	printMetrics(meta.Metrics)
	return nil
}

var sampleColumns = map[string]func(metrics.Sample) float64{
	"kinetic_energy": func(s metrics.Sample) float64 { return s.KineticEnergy },
	"max_speed":      func(s metrics.Sample) float64 { return s.MaxSpeed },
	"density_mean":   func(s metrics.Sample) float64 { return s.DensityMean },
	"density_stddev": func(s metrics.Sample) float64 { return s.DensityStdDev },
	"density_min":    func(s metrics.Sample) float64 { return s.DensityMin },
	"density_max":    func(s metrics.Sample) float64 { return s.DensityMax },
	"frame_seconds":  func(s metrics.Sample) float64 { return s.FrameSeconds },
	"rejected":       func(s metrics.Sample) float64 { return float64(s.Rejected) },
}

func sampleFields() []string {
	names := make([]string, 0, len(sampleColumns))
	for name := range sampleColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	get, ok := sampleColumns[field]
	if !ok {
		return fmt.Errorf("unknown field: %s (available: %v)", field, sampleFields())
	}

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = get(s)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("frames: %d\n\n", len(samples))
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(field+" vs frame"),
	))

	if outPath != "" {
		svg := export.SeriesToSVG(data, 800, 300, "#2b8cbe")
		if err := os.WriteFile(outPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("\nexported to %s\n", outPath)
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]
	path := outPath
	if path == "" {
		path = runID + "_particles.csv"
	}
	st := storage.New(dataDir)
	if err := st.ExportParticlesCSV(path, runID); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.ExportJSON(os.Stdout, args[0])
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]
	mode := export.ColorBySpeed
	switch colorMode {
	case "speed":
	case "density":
		mode = export.ColorByDensity
	default:
		return fmt.Errorf("unknown color mode: %s (speed, density)", colorMode)
	}

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	particles, err := st.LoadParticles(runID)
	if err != nil {
		return err
	}

	cam := camera.NewOrbit(3 * max(meta.Params.Bounds[0], meta.Params.Bounds[2], 1))
	svg := export.ParticlesToSVG(particles, cam, 800, 600, mode)

	path := outPath
	if path == "" {
		path = runID + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tH\tGAS\tREST\tVISCOSITY\tDAMPING\tGRAVITY.Y")
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%g\t%g\t%g\n",
			name, p.ParticleCount, p.H, p.GasConstant, p.RestDensity, p.Viscosity, p.Damping, p.Gravity[1])
	}
	return w.Flush()
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(args[0]); err == nil {
		return fmt.Errorf("%s already exists", args[0])
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if sc.Preset != "" && !cmd.Flags().Changed("preset") {
		preset = sc.Preset
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	rec := metrics.NewRecorder(0, metrics.Default(cfg.Params.RestDensity, speedLimit(cfg.Params))...)
	sim, err := newSimulation(ctx, cfg, log, append(startExporter(ctx, cfg, log), rec)...)
	if err != nil {
		return err
	}
	defer sim.Teardown()

	fmt.Printf("playing scenario %s (%d frames, %d events)\n", sc.Name, sc.Frames, len(sc.Events))
	if err := automation.RunScenario(ctx, sc, sim, log, nil); err != nil {
		return err
	}

	runID, err := st.Save(storage.Run{
		Meta: storage.RunMetadata{
			Preset:  cfg.Preset,
			Backend: sim.PipelineName(),
			Seed:    cfg.Seed,
			Frames:  sc.Frames,
			Params:  sim.Params(),
			Metrics: rec.Values(),
		},
		Samples:   rec.Samples(),
		Particles: sim.Snapshot(),
	})
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	printMetrics(rec.Values())
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	sweep := &automation.ParameterSweep{
		Param:  sweepParam,
		Min:    sweepMin,
		Max:    sweepMax,
		Steps:  sweepSteps,
		Frames: frames,
	}
	build := func(ctx context.Context, p fluid.Params, obs fluid.Observer) (*fluid.Simulation, error) {
		run := *cfg
		run.Params = p
		return newSimulation(ctx, &run, log, obs)
	}

	fmt.Printf("sweeping %s over %v\n", sweep.Param, sweep.Values())
	results, err := automation.RunSweep(ctx, sweep, cfg.Params, build)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tKINETIC\tMAX SPEED\tDENSITY ERR\tSTABILITY\tFRAME (ms)")
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.4g\t%.4g\t%.4g\t%.2f\t%.3f\n",
			r.Value, r.KineticEnergy, r.MaxSpeed, r.DensityError, r.Stability, r.FinalFrameTime*1000)
	}
	w.Flush()
	return err
}
