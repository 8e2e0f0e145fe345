package scheduler

import (
	"sync"
	"time"
)

// PauseState describes the current pause/resume status.
type PauseState struct {
	Paused    bool
	Reason    string
	Actor     string
	Since     time.Time
	ResumeAt  time.Time // zero if no auto-resume is scheduled
}

// PauseManager is a concurrency-safe pause switch with optional
// time-bounded auto-resume.
type PauseManager struct {
	mu    sync.Mutex
	state PauseState
	timer *time.Timer
}

// NewPauseManager creates a PauseManager that starts resumed.
func NewPauseManager() *PauseManager {
	return &PauseManager{}
}

// Pause suspends scheduled ticks. If duration is non-zero, the manager
// auto-resumes after it elapses unless Resume is called first.
func (p *PauseManager) Pause(reason, actor string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	now := time.Now()
	p.state = PauseState{
		Paused: true,
		Reason: reason,
		Actor:  actor,
		Since:  now,
	}

	if duration > 0 {
		p.state.ResumeAt = now.Add(duration)
		p.timer = time.AfterFunc(duration, func() {
			p.Resume(actor)
		})
	}
}

// Resume clears the pause state, if set.
func (p *PauseManager) Resume(actor string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	p.state = PauseState{
		Paused: false,
		Actor:  actor,
		Since:  time.Now(),
	}
}

// Paused reports whether ticks are currently suspended.
func (p *PauseManager) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Paused
}

// State returns a snapshot of the current pause state.
func (p *PauseManager) State() PauseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
