/*
Package session models a worker's daily attendance as a finite state
machine driven by explicit actions and reconciled against authoritative
server snapshots.

PURPOSE:
  The backend attendance service owns the truth about worked and break
  seconds (break/work boundaries may be adjusted server-side). The client
  holds a read-mirrored, clock-projected copy:

    Machine    the state machine; every transition is a round trip to the
               Service followed by a mandatory full resync
    Projector  a single ticking process that advances the displayed
               counters between resyncs
    Snapshot   the authoritative state pulled on every resync

STATES:
  OUT → WORKING ⇄ ON_BREAK, WORKING → CHECKED_OUT (terminal for the day).

  There is no optimistic update: on round-trip failure the local state is
  untouched and the error surfaces to the caller. Invalid actions fail
  fast locally with a TransitionError and zero network calls.

SEE ALSO:
  - machine.go: transitions and resync
  - projector.go: the ticking counter projection
*/
package session

import "time"

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateOut        State = "OUT"
	StateWorking    State = "WORKING"
	StateOnBreak    State = "ON_BREAK"
	StateCheckedOut State = "CHECKED_OUT"
)

// =============================================================================
// SNAPSHOT - The authoritative state, owned by the backend
// =============================================================================

// Snapshot mirrors the attendance service's view of today. Invariants:
// OnBreak implies CheckedIn; CheckedOut implies neither CheckedIn nor
// OnBreak for new work.
type Snapshot struct {
	CheckedIn  bool
	OnBreak    bool
	CheckedOut bool

	WorkedSeconds int64
	BreakSeconds  int64

	// Set only while OnBreak; seeds the displayed current-break elapsed.
	CurrentBreakStartedAt *time.Time
}

// State derives the machine state from the snapshot flags.
func (s Snapshot) State() State {
	switch {
	case s.CheckedOut:
		return StateCheckedOut
	case s.OnBreak:
		return StateOnBreak
	case s.CheckedIn:
		return StateWorking
	default:
		return StateOut
	}
}

// Consistent reports whether the snapshot honors the state invariants.
// A server bug can in principle ship a contradictory snapshot; callers
// log and keep the last-known-good state instead of applying it.
func (s Snapshot) Consistent() bool {
	if s.OnBreak && !s.CheckedIn {
		return false
	}
	if s.CheckedOut && (s.OnBreak || s.CheckedIn) {
		return false
	}
	return true
}

// Geo is the geolocation captured as part of a check-in request.
type Geo struct {
	Lat      float64
	Lng      float64
	Accuracy float64
}

// CheckInResult is the backend's verdict on a check-in.
type CheckInResult struct {
	Late          bool
	LateByMinutes int
}
