package fluid

import "time"

// FrameStats describes one completed Update.
type FrameStats struct {
	Frame     uint64
	Particles int
	Substeps  int
	StageTime [numStages]time.Duration
	Total     time.Duration
	Rejected  int
	Force     ExternalForce
}

// Stage returns the accumulated time spent in stage s across substeps.
func (f FrameStats) Stage(s Stage) time.Duration {
	return f.StageTime[s]
}

// Observer is notified after every completed frame. Observers run on the
// Update goroutine and must not call back into the simulation.
type Observer interface {
	OnFrame(stats FrameStats, particles []Particle)
}
