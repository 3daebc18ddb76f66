/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All engine-level error categories in one place. Domain packages wrap
  these sentinels with structured context (e.g. session.TransitionError
  unwraps to ErrInvalidTransition).

ERROR CATEGORIES:
  1. Precondition violations - invalid state machine transitions, rejected
     locally before any backend call is made
  2. Submission rejections  - leave submissions that fail the balance or
     eligibility gate
  3. Sync failures          - authoritative round trips that failed; local
     state is left at its last-known-good value

  Notification dispatch failures are deliberately NOT here: they are
  isolated per recipient and logged, never surfaced as errors.

USAGE:
  if errors.Is(err, engine.ErrInvalidTransition) {
      // show the actionable message, no state changed
  }
*/
package engine

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a session action is attempted
	// from a state that does not permit it. The backend is never contacted.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrSubmissionRejected is returned when a leave submission fails the
	// balance or eligibility gate.
	ErrSubmissionRejected = errors.New("leave submission rejected")

	// ErrSyncFailed wraps a failed authoritative round trip (resync or
	// mutation). Local state stays at its last-known-good value.
	ErrSyncFailed = errors.New("attendance sync failed")

	// ErrNoBalanceRecord is returned when a leave type has no configured
	// balance snapshot. It renders as zero availability, never as unlimited.
	ErrNoBalanceRecord = errors.New("no balance record for leave type")
)

// IsClientError reports whether the error is caused by the caller rather
// than the backend, i.e. retrying the same call cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSubmissionRejected) ||
		errors.Is(err, ErrNoBalanceRecord)
}
