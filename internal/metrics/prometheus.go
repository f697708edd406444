package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/san-kum/sphfluid/internal/fluid"
)

// Exporter publishes frame timings and fluid state as Prometheus metrics.
type Exporter struct {
	registry *prometheus.Registry

	stageSeconds  *prometheus.HistogramVec
	frameSeconds  prometheus.Histogram
	frames        prometheus.Counter
	rejected      prometheus.Counter
	particles     prometheus.Gauge
	kineticEnergy prometheus.Gauge
}

var stageBuckets = prometheus.ExponentialBuckets(0.0001, 2, 16)

func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		stageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sphfluid",
				Name:      "stage_seconds",
				Help:      "Time spent in each pipeline stage per frame, summed over substeps",
				Buckets:   stageBuckets,
			},
			[]string{"stage"},
		),
		frameSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sphfluid",
			Name:      "frame_seconds",
			Help:      "Wall time of a complete frame",
			Buckets:   stageBuckets,
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sphfluid",
			Name:      "frames_total",
			Help:      "Frames completed",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sphfluid",
			Name:      "rejected_updates_total",
			Help:      "Particle updates discarded because the result was not finite",
		}),
		particles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sphfluid",
			Name:      "particles",
			Help:      "Particles in the store",
		}),
		kineticEnergy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sphfluid",
			Name:      "kinetic_energy",
			Help:      "Total kinetic energy after the last frame",
		}),
	}
}

func (e *Exporter) OnFrame(stats fluid.FrameStats, particles []fluid.Particle) {
	for _, s := range fluid.Stages {
		e.stageSeconds.WithLabelValues(s.String()).Observe(stats.Stage(s).Seconds())
	}
	e.frameSeconds.Observe(stats.Total.Seconds())
	e.frames.Inc()
	e.rejected.Add(float64(stats.Rejected))
	e.particles.Set(float64(len(particles)))
	e.kineticEnergy.Set(KineticEnergyOf(particles))
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
