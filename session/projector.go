/*
projector.go - Local clock projection between resyncs

PURPOSE:
  The displayed worked/break counters must advance smoothly even though the
  authoritative values only arrive on resync. The Projector is the single
  recurring scheduled operation in the engine: one ticker, firing once per
  second, incrementing whichever counter the current running mode selects.

DESIGN:
  - The TimerState is a projection for display, never a source of truth;
    every successful resync overwrites it wholesale.
  - Exactly one of the work/break counters advances per tick. Switching
    mode stops the other timer first; they never increment concurrently.
  - Stop is unconditional and idempotent: stopping an already-stopped
    projector is a no-op, not an error. Required because cancellation fires
    on state transitions, session end, AND UI unmount, in any order.
*/
package session

import (
	"sync"
	"time"
)

// =============================================================================
// RUNNING MODE
// =============================================================================

// RunningMode is the projector's current ticking target.
type RunningMode int

const (
	ModeIdle RunningMode = iota
	ModeWorking
	ModeOnBreak
)

func (m RunningMode) String() string {
	switch m {
	case ModeWorking:
		return "WORKING"
	case ModeOnBreak:
		return "ON_BREAK"
	default:
		return "IDLE"
	}
}

// modeFor maps a server snapshot to the ticking target it implies.
func modeFor(s Snapshot) RunningMode {
	switch s.State() {
	case StateWorking:
		return ModeWorking
	case StateOnBreak:
		return ModeOnBreak
	default:
		return ModeIdle
	}
}

// =============================================================================
// TIMER STATE - Client-local display projection
// =============================================================================

// TimerState is the client-local counter set. Mutated once per tick while
// running, overwritten wholesale on every successful resync.
type TimerState struct {
	WorkedSeconds       int64
	BreakSeconds        int64
	CurrentBreakElapsed int64
	Mode                RunningMode
}

// =============================================================================
// PROJECTOR - The single recurring ticker
// =============================================================================

// Projector invokes tick at a fixed interval until stopped. Start and Stop
// are both idempotent and safe to call in any order.
type Projector struct {
	interval time.Duration
	tick     func()

	mu      sync.Mutex
	ticker  *time.Ticker
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewProjector creates a stopped projector. interval <= 0 defaults to one
// second, the display resolution of the attendance counters.
func NewProjector(interval time.Duration, tick func()) *Projector {
	if interval <= 0 {
		interval = time.Second
	}
	return &Projector{interval: interval, tick: tick}
}

// Start begins ticking. No-op when already running.
func (p *Projector) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.stop = make(chan struct{})
	p.running = true
	p.wg.Add(1)

	go p.run(p.ticker, p.stop)
}

// Stop halts ticking and waits for the loop to exit. Idempotent.
func (p *Projector) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.wg.Wait()
	p.running = false
}

// Running reports whether the ticker loop is active.
func (p *Projector) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Projector) run(ticker *time.Ticker, stop chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-stop:
			return
		}
	}
}
