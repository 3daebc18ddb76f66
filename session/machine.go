/*
machine.go - The attendance state machine

PURPOSE:
  Drives OUT → WORKING ⇄ ON_BREAK → CHECKED_OUT through authoritative round
  trips. Each transition:

    1. Checks its precondition locally; violations fail fast with a
       TransitionError and zero network calls.
    2. Sends the mutation to the Service.
    3. Performs a mandatory full resync; the machine never advances past
       the transition's target state until the resync has completed.

  There is no optimistic-then-rollback model: a failed round trip leaves
  local state at its last-known-good value and surfaces the error.

DEPENDENCY INJECTION:
  The employee identity, backend service, clock, grace threshold, and the
  late-arrival hook are all constructor parameters. Nothing here reads
  ambient globals, which keeps "now" and the audience replaceable in tests.

SINGLE-FLIGHT:
  The engine assumes the caller serializes mutations per session (the UI
  layer's responsibility); the internal mutex protects the projection
  against the ticker, not against concurrent user actions.
*/
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// SERVICE - The consumed authoritative backend
// =============================================================================

// Service is the boundary to the backend attendance service. All calls are
// request/response round trips; retry policy belongs to the caller layer.
type Service interface {
	Snapshot(ctx context.Context, employeeID string) (Snapshot, error)
	CheckIn(ctx context.Context, employeeID string, geo Geo) (CheckInResult, error)
	BreakIn(ctx context.Context, employeeID string) error
	BreakOut(ctx context.Context, employeeID string) error
	CheckOut(ctx context.Context, employeeID string) error
}

// Clock abstracts "now" for break-elapsed seeding.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultGraceMinutes is the late-arrival threshold beyond which the
// notification fan-out fires.
const DefaultGraceMinutes = 15

// =============================================================================
// TRANSITION ERROR
// =============================================================================

// TransitionError reports an action attempted from a state that does not
// permit it. No backend call was made.
type TransitionError struct {
	Action string
	State  State
	Hint   string
}

func (e *TransitionError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("cannot %s while %s: %s", e.Action, e.State, e.Hint)
	}
	return fmt.Sprintf("cannot %s while %s", e.Action, e.State)
}

func (e *TransitionError) Unwrap() error { return engine.ErrInvalidTransition }

// =============================================================================
// MACHINE
// =============================================================================

// Config wires a Machine's collaborators.
type Config struct {
	EmployeeID string
	Service    Service

	// Clock defaults to the system clock.
	Clock Clock

	// GraceMinutes defaults to DefaultGraceMinutes when zero.
	GraceMinutes int

	// TickInterval defaults to one second when zero.
	TickInterval time.Duration

	// OnLateArrival fires after a successful check-in whose reported
	// lateness exceeds the grace threshold. Fire-and-forget.
	OnLateArrival func(ctx context.Context, minutesLate int)
}

// Machine is the per-worker session state machine.
type Machine struct {
	employeeID string
	svc        Service
	clock      Clock
	grace      int
	onLate     func(ctx context.Context, minutesLate int)
	projector  *Projector

	mu    sync.Mutex
	snap  Snapshot
	timer TimerState
}

// NewMachine builds a machine in the OUT state. Call Resync to adopt the
// server's view of today before driving transitions.
func NewMachine(cfg Config) *Machine {
	m := &Machine{
		employeeID: cfg.EmployeeID,
		svc:        cfg.Service,
		clock:      cfg.Clock,
		grace:      cfg.GraceMinutes,
		onLate:     cfg.OnLateArrival,
	}
	if m.clock == nil {
		m.clock = systemClock{}
	}
	if m.grace == 0 {
		m.grace = DefaultGraceMinutes
	}
	m.projector = NewProjector(cfg.TickInterval, m.tick)
	return m
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.State()
}

// Timer returns the current display projection.
func (m *Machine) Timer() TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer
}

// LastSnapshot returns the last successfully applied server snapshot.
func (m *Machine) LastSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Close stops the projector. Safe to call more than once.
func (m *Machine) Close() {
	m.projector.Stop()
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// CheckIn performs OUT → WORKING. The geolocation travels with the request;
// when the server reports lateness beyond the grace threshold the
// late-arrival hook fires after the mandatory resync.
func (m *Machine) CheckIn(ctx context.Context, geo Geo) error {
	if st := m.State(); st != StateOut {
		return &TransitionError{Action: "check in", State: st}
	}

	res, err := m.svc.CheckIn(ctx, m.employeeID, geo)
	if err != nil {
		return fmt.Errorf("check-in: %w: %w", engine.ErrSyncFailed, err)
	}
	if _, err := m.Resync(ctx); err != nil {
		return err
	}

	if res.LateByMinutes > m.grace && m.onLate != nil {
		m.onLate(ctx, res.LateByMinutes)
	}
	return nil
}

// BreakIn performs WORKING → ON_BREAK.
func (m *Machine) BreakIn(ctx context.Context) error {
	if st := m.State(); st != StateWorking {
		return &TransitionError{Action: "start a break", State: st}
	}
	if err := m.svc.BreakIn(ctx, m.employeeID); err != nil {
		return fmt.Errorf("break-in: %w: %w", engine.ErrSyncFailed, err)
	}
	_, err := m.Resync(ctx)
	return err
}

// BreakOut performs ON_BREAK → WORKING.
func (m *Machine) BreakOut(ctx context.Context) error {
	if st := m.State(); st != StateOnBreak {
		return &TransitionError{Action: "end a break", State: st}
	}
	if err := m.svc.BreakOut(ctx, m.employeeID); err != nil {
		return fmt.Errorf("break-out: %w: %w", engine.ErrSyncFailed, err)
	}
	_, err := m.Resync(ctx)
	return err
}

// CheckOut performs WORKING → CHECKED_OUT. Checking out while on break
// fails fast locally; the backend is not contacted.
func (m *Machine) CheckOut(ctx context.Context) error {
	st := m.State()
	if st == StateOnBreak {
		return &TransitionError{Action: "check out", State: st, Hint: "end your break first"}
	}
	if st != StateWorking {
		return &TransitionError{Action: "check out", State: st}
	}
	if err := m.svc.CheckOut(ctx, m.employeeID); err != nil {
		return fmt.Errorf("check-out: %w: %w", engine.ErrSyncFailed, err)
	}
	_, err := m.Resync(ctx)
	return err
}

// =============================================================================
// RESYNC - The authoritative overwrite
// =============================================================================

// Resync pulls the authoritative snapshot and overwrites the local
// projection wholesale. On failure the local state is left at its
// last-known-good value and the projector keeps running with stale but
// consistent counters.
func (m *Machine) Resync(ctx context.Context) (Snapshot, error) {
	snap, err := m.svc.Snapshot(ctx, m.employeeID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resync: %w: %w", engine.ErrSyncFailed, err)
	}
	if !snap.Consistent() {
		slog.Warn("inconsistent attendance snapshot ignored",
			"employee", m.employeeID,
			"checked_in", snap.CheckedIn, "on_break", snap.OnBreak, "checked_out", snap.CheckedOut)
		return Snapshot{}, fmt.Errorf("resync: %w: inconsistent snapshot", engine.ErrSyncFailed)
	}

	mode := m.apply(snap)

	// Adjust the ticker outside the state lock: exactly one timer may run,
	// and IDLE cancels it entirely.
	if mode == ModeIdle {
		m.projector.Stop()
	} else {
		m.projector.Start()
	}
	return snap, nil
}

// apply overwrites the projection from the snapshot and returns the new
// running mode.
func (m *Machine) apply(snap Snapshot) RunningMode {
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := modeFor(snap)
	m.snap = snap
	m.timer = TimerState{
		WorkedSeconds: snap.WorkedSeconds,
		BreakSeconds:  snap.BreakSeconds,
		Mode:          mode,
	}
	if snap.OnBreak && snap.CurrentBreakStartedAt != nil {
		elapsed := int64(m.clock.Now().Sub(*snap.CurrentBreakStartedAt).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		m.timer.CurrentBreakElapsed = elapsed
	}
	return mode
}

// tick advances exactly one counter depending on the running mode. Invoked
// by the projector once per interval.
func (m *Machine) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.timer.Mode {
	case ModeWorking:
		m.timer.WorkedSeconds++
	case ModeOnBreak:
		m.timer.BreakSeconds++
		m.timer.CurrentBreakElapsed++
	}
}
