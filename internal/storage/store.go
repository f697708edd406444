package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/san-kum/sphfluid/internal/fluid"
	"github.com/san-kum/sphfluid/internal/metrics"
)

const (
	metadataFile  = "metadata.json"
	framesFile    = "frames.csv"
	particlesFile = "particles.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Preset    string             `json:"preset,omitempty"`
	Backend   string             `json:"backend"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Frames    int                `json:"frames"`
	Particles int                `json:"particles"`
	Params    fluid.Params       `json:"params"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Run is everything persisted for one simulation run.
type Run struct {
	Meta      RunMetadata
	Samples   []metrics.Sample
	Particles []fluid.Particle
}

// NewRunID returns a sortable, collision-free run identifier.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// Save writes metadata.json, the per-frame diagnostics and the final
// particle snapshot under a new run directory.
func (s *Store) Save(run Run) (string, error) {
	meta := run.Meta
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Timestamp)
	}
	meta.Particles = len(run.Particles)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, framesFile), &run.Samples); err != nil {
		return "", err
	}
	rows := ParticleRows(run.Particles)
	if err := writeCSV(filepath.Join(runDir, particlesFile), &rows); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]metrics.Sample, error) {
	var samples []metrics.Sample
	if err := readCSV(filepath.Join(s.baseDir, runID, framesFile), &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Store) LoadParticles(runID string) ([]fluid.Particle, error) {
	var rows []ParticleRow
	if err := readCSV(filepath.Join(s.baseDir, runID, particlesFile), &rows); err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return nil
}
