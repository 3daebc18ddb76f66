/*
Package eligibility decides which calendar days in a requested range may
legally carry a leave unit.

PURPOSE:
  Given an inclusive date range, the calendar policy store, and "today",
  produce one verdict per day. Two passes:

  1. Independent disqualification (rules.go): PAST, WEEKEND, HOLIDAY,
     ALREADY_APPLIED, first match wins.
  2. Sandwich bridging: a weekend fully enclosed by an enabled Friday and an
     enabled Monday is charged as leave rather than given free, so those
     weekend days flip back to enabled with reason SANDWICH_BRIDGE.

  A separate single-day flow exists for optional holidays: it bypasses the
  range algorithm entirely and always yields one enabled FULL day, even in
  the past. Submission gating for past optional holidays is a separate
  disclosure (IsPastOptionalHoliday), not an enabled flag.

PURITY:
  Compute is a pure function. Same inputs, same output, no hidden state,
  no I/O. A malformed range (to before from) yields an empty slice.

SEE ALSO:
  - rules.go: the ordered disqualification chain
  - balance: converts the enabled days into requested units
*/
package eligibility

import (
	"time"

	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// DAY VERDICT
// =============================================================================

// Reason explains why a day is disabled, or how it became enabled again.
type Reason string

const (
	ReasonNone           Reason = "NONE"
	ReasonPast           Reason = "PAST"
	ReasonWeekend        Reason = "WEEKEND"
	ReasonHoliday        Reason = "HOLIDAY"
	ReasonAlreadyApplied Reason = "ALREADY_APPLIED"
	ReasonSandwichBridge Reason = "SANDWICH_BRIDGE"
)

// Session is the portion of the day a leave unit covers.
type Session string

const (
	SessionFull       Session = "FULL"
	SessionFirstHalf  Session = "FIRST_HALF"
	SessionSecondHalf Session = "SECOND_HALF"
)

// Day is the per-day eligibility verdict. Transient: recomputed on every
// range or parameter change, never persisted.
type Day struct {
	Date    engine.Date
	Enabled bool
	Reason  Reason
	Session Session
	HalfDay bool
}

// Units returns the leave units this day consumes: zero when disabled,
// otherwise 0.5 for a half day and 1.0 for a full day.
func (d Day) Units() engine.Units {
	if !d.Enabled {
		return engine.ZeroUnits()
	}
	if d.HalfDay {
		return engine.HalfDay()
	}
	return engine.FullDay()
}

// =============================================================================
// RANGE COMPUTATION
// =============================================================================

// Compute produces one Day per date in [from, to] inclusive, ascending.
// today must be normalized to a calendar day. An inverted range yields an
// empty slice.
func Compute(from, to engine.Date, store calendar.PolicyStore, today engine.Date) []Day {
	dates := engine.RangeDays(from, to)
	if len(dates) == 0 {
		return []Day{}
	}

	rc := ruleContext{store: store, today: today}
	days := make([]Day, len(dates))
	for i, date := range dates {
		reason := disqualify(date, rc)
		days[i] = Day{
			Date:    date,
			Enabled: reason == ReasonNone,
			Reason:  reason,
			Session: SessionFull,
		}
	}

	bridgeSandwichedWeekends(days)
	return days
}

// bridgeSandwichedWeekends runs the second pass: for each maximal contiguous
// run of weekend days, if the day before is an enabled Friday and the day
// after is an enabled Monday, every run day still carrying ReasonWeekend is
// flipped to an enabled SANDWICH_BRIDGE day. Days inside the run disabled
// for any other reason are left untouched. Each run is processed once.
func bridgeSandwichedWeekends(days []Day) {
	i := 0
	for i < len(days) {
		if !days[i].Date.IsWeekend() {
			i++
			continue
		}

		// Extend to the end of the weekend run.
		end := i
		for end+1 < len(days) && days[end+1].Date.IsWeekend() {
			end++
		}

		prev, next := i-1, end+1
		if prev >= 0 && next < len(days) &&
			days[prev].Enabled && days[next].Enabled &&
			days[prev].Date.Weekday() == time.Friday &&
			days[next].Date.Weekday() == time.Monday {
			for k := i; k <= end; k++ {
				if days[k].Reason == ReasonWeekend {
					days[k].Enabled = true
					days[k].Reason = ReasonSandwichBridge
					days[k].Session = SessionFull
					days[k].HalfDay = false
				}
			}
		}

		i = end + 1
	}
}

// =============================================================================
// OPTIONAL HOLIDAY FLOW - Separate single-day path
// =============================================================================

// OptionalHolidayDay yields the one-day verdict for an explicitly selected
// optional holiday. It does not run the range algorithm: the day is always
// enabled and FULL, even when the date is in the past. Past-ness is exposed
// separately via IsPastOptionalHoliday and gates submission only.
func OptionalHolidayDay(date engine.Date) Day {
	return Day{
		Date:    date,
		Enabled: true,
		Reason:  ReasonNone,
		Session: SessionFull,
	}
}

// IsPastOptionalHoliday reports whether the selected optional holiday lies
// strictly before today. Callers use it to gate submission; it never alters
// the day's enabled flag.
func IsPastOptionalHoliday(date, today engine.Date) bool {
	return date.Before(today)
}

// =============================================================================
// HALF-DAY SELECTION
// =============================================================================

// SetSession applies a UI-driven session choice to a single day.
// Disabled days never accept a session; bridged weekend days are charged
// as full days and never offer half-day selection.
func SetSession(d *Day, s Session) error {
	if !d.Enabled {
		return engine.ErrSubmissionRejected
	}
	if d.Reason == ReasonSandwichBridge && s != SessionFull {
		return engine.ErrSubmissionRejected
	}
	d.Session = s
	d.HalfDay = s != SessionFull
	return nil
}

// RequestedUnits totals the leave units across the enabled days.
func RequestedUnits(days []Day) engine.Units {
	total := engine.ZeroUnits()
	for _, d := range days {
		total = total.Add(d.Units())
	}
	return total
}
