/*
Package calendar holds the reference data the leave eligibility calculator
reads: recognized holidays and the days already occupied by committed leave.

PURPOSE:
  A pure read-only lookup layer. Holidays are created and edited by HR
  tooling elsewhere; committed leave days are a projection over the leave
  history (every day of every request that is not rejected). This package
  never mutates either.

KEY CONCEPTS:
  - Holiday: PUBLIC holidays disable range days; OPTIONAL holidays never do,
    they are selected through a separate single-day flow.
  - Committed day: a day that already carries a non-rejected leave request;
    requesting it again would double-book.

SEE ALSO:
  - eligibility: the only consumer of PolicyStore
  - cache.go: TTL caching for holiday reference data
*/
package calendar

import "github.com/warp/attendance-engine/engine"

// =============================================================================
// HOLIDAY - Immutable reference data
// =============================================================================

type HolidayKind string

const (
	KindPublic   HolidayKind = "PUBLIC"
	KindOptional HolidayKind = "OPTIONAL"
)

// Holiday is one recognized holiday for the organization.
type Holiday struct {
	ID     string
	Date   engine.Date
	Kind   HolidayKind
	Name   string
	Active bool
}

// =============================================================================
// POLICY STORE - Read-only lookup used by the eligibility calculator
// =============================================================================

// PolicyStore answers the three questions the eligibility calculator asks
// about a day. Implementations must be side-effect free.
type PolicyStore interface {
	// PublicHolidayOn reports whether the day is an active PUBLIC holiday.
	// Optional holidays never disqualify a day here.
	PublicHolidayOn(d engine.Date) bool

	// HolidayOn returns the holiday on the day, if any (public or optional,
	// active or not). Used for display, not for disqualification.
	HolidayOn(d engine.Date) (Holiday, bool)

	// IsCommitted reports whether the day already carries a non-rejected
	// leave request for the active user.
	IsCommitted(d engine.Date) bool
}

// Snapshot is an in-memory PolicyStore built once per computation from the
// holiday list and the user's committed days.
type Snapshot struct {
	holidays  map[string]Holiday
	committed map[string]bool
}

// NewSnapshot indexes the inputs by day. Later duplicates on the same day
// win, matching the "latest edit wins" behavior of the HR tooling.
func NewSnapshot(holidays []Holiday, committed []engine.Date) *Snapshot {
	s := &Snapshot{
		holidays:  make(map[string]Holiday, len(holidays)),
		committed: make(map[string]bool, len(committed)),
	}
	for _, h := range holidays {
		s.holidays[h.Date.String()] = h
	}
	for _, d := range committed {
		s.committed[d.String()] = true
	}
	return s
}

func (s *Snapshot) PublicHolidayOn(d engine.Date) bool {
	h, ok := s.holidays[d.String()]
	return ok && h.Active && h.Kind == KindPublic
}

func (s *Snapshot) HolidayOn(d engine.Date) (Holiday, bool) {
	h, ok := s.holidays[d.String()]
	return h, ok
}

func (s *Snapshot) IsCommitted(d engine.Date) bool {
	return s.committed[d.String()]
}

var _ PolicyStore = (*Snapshot)(nil)
