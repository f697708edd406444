package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/sphfluid/internal/metrics"
)

type ExportData struct {
	Meta    RunMetadata        `json:"meta"`
	Frames  []metrics.Sample   `json:"frames"`
	Summary map[string]float64 `json:"summary"`
}

// ExportJSON writes a run's metadata and per-frame diagnostics as one JSON
// document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: *meta, Frames: frames, Summary: meta.Metrics})
}

// ExportParticlesCSV copies a run's particle snapshot to path.
func (s *Store) ExportParticlesCSV(path, runID string) error {
	ps, err := s.LoadParticles(runID)
	if err != nil {
		return err
	}
	rows := ParticleRows(ps)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}
