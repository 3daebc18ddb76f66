/*
Package balance computes how many leave units of a given type remain
available once pending requests, monthly windows, and carry-forward caps
are taken into account.

PURPOSE:
  A pure arithmetic layer over a read-only balance snapshot supplied by the
  external balance service. It answers three questions per leave type:

    rawAvailable        what the configuration grants this month
    effectiveAvailable  raw minus units already pending approval
    balanceAfter        what would remain after this submission

  and gates submission: canSubmit requires a positive request that fits in
  the effective pool (or an unlimited type).

POOL SHAPES:
  unlimited       no cap; availability is infinite
  windowed        resets each month, no carry-forward pool
  carry-forward   monthly allowance plus carried units when permitted

PESSIMISM:
  Pending requests reserve capacity before approval. Two pending requests
  cannot jointly overdraw a pool even though neither is approved yet.

SEE ALSO:
  - eligibility: produces the requested unit total from enabled days
  - engine/units.go: decimal unit arithmetic
*/
package balance

import "github.com/warp/attendance-engine/engine"

// =============================================================================
// BALANCE SNAPSHOT - Read-only input from the external balance service
// =============================================================================

// TypeBalance is the configured allowance snapshot for one leave type.
// Treated as read-only for the duration of one computation.
type TypeBalance struct {
	Code string
	Name string

	// Unlimited types have no pool at all.
	Unlimited bool

	// Windowed types reset each month and never carry forward.
	Windowed bool

	AvailableThisMonth engine.Units

	// Carry-forward pool, added only when the type permits it.
	CanCarryForward bool
	CarriedForward  engine.Units
}

// =============================================================================
// AVAILABILITY - Computed output
// =============================================================================

// Availability is the result of one balance computation. When Unlimited is
// set the unit fields are meaningless and submission is gated only on the
// requested amount being positive.
type Availability struct {
	Unlimited bool

	Raw       engine.Units
	Effective engine.Units
	After     engine.Units

	CanSubmit bool
}

// Compute derives availability for one submission attempt.
//
// tb == nil means the leave type has no configured balance record: the
// result is zero availability and canSubmit = false, never unlimited.
// requested must already include the half-day weighting of the enabled days.
func Compute(tb *TypeBalance, pending, requested engine.Units) Availability {
	if tb == nil {
		return Availability{}
	}

	if tb.Unlimited {
		return Availability{
			Unlimited: true,
			CanSubmit: requested.IsPositive(),
		}
	}

	raw := tb.AvailableThisMonth
	if !tb.Windowed && tb.CanCarryForward {
		raw = raw.Add(tb.CarriedForward)
	}

	effective := raw.Sub(pending).FloorZero()

	return Availability{
		Raw:       raw,
		Effective: effective,
		After:     effective.Sub(requested).FloorZero(),
		CanSubmit: requested.IsPositive() && requested.LessThanOrEqual(effective),
	}
}
