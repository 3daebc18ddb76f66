/*
Package engine provides the shared primitives for the attendance and leave
eligibility engine.

PURPOSE:
  Everything in the engine speaks two currencies: calendar days and leave
  units. This package defines both so that the eligibility calculator, the
  balance ledger, and the session state machine never disagree about what
  "a day" or "half a day" means.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: A calendar day with the time component stripped (UTC midnight)
  - Range enumeration: inclusive ascending day walks for eligibility

DESIGN PRINCIPLES:
  1. Day granularity: leave eligibility is decided per calendar day, never
     per timestamp. All comparisons normalize to midnight UTC.
  2. Precision: unit arithmetic uses decimal.Decimal (units.go), never
     float64.
  3. Explicit injection: "today" is always a parameter, never read from
     the wall clock inside an algorithm.

SEE ALSO:
  - units.go: Leave unit arithmetic
  - errors.go: Engine-wide error taxonomy
*/
package engine

import "time"

// =============================================================================
// DATE - Calendar day (time stripped, UTC)
// =============================================================================

// Date is a calendar day. The time component is always midnight UTC; the
// constructors enforce this so two Dates for the same day compare equal.
type Date struct {
	Time time.Time
}

// NewDate builds a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf strips the time component from t.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day. Algorithms should receive "today"
// as a parameter; this is the convenience constructor for the edges that
// inject it.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// RANGE ENUMERATION
// =============================================================================

// DaysBetween returns the whole-day distance from from to to. Negative when
// to precedes from.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// RangeDays enumerates every day in [from, to] inclusive, ascending.
// Returns nil when to precedes from.
func RangeDays(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(from, to)+1)
	for current := from; current.BeforeOrEqual(to); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}
