// Package maintenance converges stored entries toward the current schema: it re-derives
// context for entries below the target context version and fills in missing embeddings.
package maintenance

import (
	"sync"

	"github.com/echovault/echovault/internal/model"
)

// Job names a maintenance job.
type Job string

const (
	JobRetrofit Job = "retrofit"
	JobBackfill Job = "backfill"
)

// Guard holds the per-session job flags. Each job starts at most once per epoch and never
// runs twice concurrently.
type Guard struct {
	mu       sync.Mutex
	started  map[Job]bool
	running  map[Job]bool
	epoch    int
	progress model.RetrofitProgress
}

func NewGuard() *Guard {
	return &Guard{started: map[Job]bool{}, running: map[Job]bool{}}
}

// TryStart claims job for the current epoch. It returns false when the job already ran in
// this epoch or is still running.
func (g *Guard) TryStart(job Job) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started[job] || g.running[job] {
		return false
	}
	g.started[job] = true
	g.running[job] = true
	return true
}

// Finish releases the running flag taken by TryStart.
func (g *Guard) Finish(job Job) {
	g.mu.Lock()
	g.running[job] = false
	g.mu.Unlock()
}

// Running reports whether job is in flight.
func (g *Guard) Running(job Job) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running[job]
}

// Busy reports whether any job is in flight.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.running {
		if r {
			return true
		}
	}
	return false
}

// NewEpoch clears the one-shot flags so every job may start again. It refuses while a job
// is running and reports whether the epoch advanced.
func (g *Guard) NewEpoch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.running {
		if r {
			return false
		}
	}
	g.started = map[Job]bool{}
	g.epoch++
	return true
}

// Epoch returns how many times NewEpoch advanced.
func (g *Guard) Epoch() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

func (g *Guard) setProgress(p model.RetrofitProgress) {
	g.mu.Lock()
	g.progress = p
	g.mu.Unlock()
}

// Progress returns the last retrofit progress reported in this session.
func (g *Guard) Progress() model.RetrofitProgress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progress
}

// Status is a snapshot for the maintenance endpoint.
type Status struct {
	Epoch    int                    `json:"epoch"`
	Running  []Job                  `json:"running"`
	Progress model.RetrofitProgress `json:"progress"`
}

func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := Status{Epoch: g.epoch, Running: []Job{}, Progress: g.progress}
	for _, j := range []Job{JobRetrofit, JobBackfill} {
		if g.running[j] {
			st.Running = append(st.Running, j)
		}
	}
	return st
}
