/*
rules.go - Ordered disqualification rules

PURPOSE:
  The first pass of the eligibility calculation is a fixed, priority-ordered
  chain of disqualification checks. The order is part of the contract:
  a Saturday in the past reads PAST, not WEEKEND; a committed day that is
  also a public holiday reads HOLIDAY, not ALREADY_APPLIED.

ORDER (first match wins):
  1. PAST             date strictly before today
  2. WEEKEND          Saturday or Sunday
  3. HOLIDAY          active PUBLIC holiday
  4. ALREADY_APPLIED  day occupied by a non-rejected leave request

  Optional holidays are deliberately absent: they never disable a day in
  this pass and are handled by the single-day optional-holiday flow.

Each rule is a standalone predicate so the priority behavior is testable
per rule, not only through the full calculator.
*/
package eligibility

import (
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/engine"
)

// ruleContext carries the lookups a disqualification predicate may consult.
type ruleContext struct {
	store calendar.PolicyStore
	today engine.Date
}

// rule pairs a reason code with its disqualification predicate.
type rule struct {
	reason       Reason
	disqualifies func(d engine.Date, rc ruleContext) bool
}

// disqualifiers is evaluated top to bottom; the first matching rule decides
// the day's reason code. Do not reorder.
var disqualifiers = []rule{
	{ReasonPast, func(d engine.Date, rc ruleContext) bool {
		return d.Before(rc.today)
	}},
	{ReasonWeekend, func(d engine.Date, _ ruleContext) bool {
		return d.IsWeekend()
	}},
	{ReasonHoliday, func(d engine.Date, rc ruleContext) bool {
		return rc.store.PublicHolidayOn(d)
	}},
	{ReasonAlreadyApplied, func(d engine.Date, rc ruleContext) bool {
		return rc.store.IsCommitted(d)
	}},
}

// disqualify returns the first matching reason, or ReasonNone.
func disqualify(d engine.Date, rc ruleContext) Reason {
	for _, r := range disqualifiers {
		if r.disqualifies(d, rc) {
			return r.reason
		}
	}
	return ReasonNone
}
