/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// ATTENDANCE
// =============================================================================

// CheckInRequest carries the geolocation captured at check-in time.
type CheckInRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

// AttendanceDTO is the session state returned after every attendance call.
type AttendanceDTO struct {
	State               string `json:"state"`
	WorkedSeconds       int64  `json:"worked_seconds"`
	BreakSeconds        int64  `json:"break_seconds"`
	CurrentBreakElapsed int64  `json:"current_break_elapsed"`
	RunningMode         string `json:"running_mode"`
}

// =============================================================================
// ELIGIBILITY AND LEAVE
// =============================================================================

// EligibilityDayDTO is one day's verdict within a requested range.
type EligibilityDayDTO struct {
	Date    string `json:"date"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
	Session string `json:"session"`
	HalfDay bool   `json:"half_day"`
}

// EligibilityDTO is the verdict for a whole range, or for a single
// optional holiday.
type EligibilityDTO struct {
	Days []EligibilityDayDTO `json:"days"`

	// PastOptionalHoliday is set only on the optional-holiday flow; it
	// gates submission without disabling the day.
	PastOptionalHoliday bool `json:"past_optional_holiday,omitempty"`
}

// BalanceDTO reports availability for one leave type against a requested
// amount.
type BalanceDTO struct {
	Code      string  `json:"code"`
	Name      string  `json:"name,omitempty"`
	Unlimited bool    `json:"unlimited"`
	Raw       float64 `json:"raw"`
	Effective float64 `json:"effective"`
	Requested float64 `json:"requested"`
	After     float64 `json:"after"`
	CanSubmit bool    `json:"can_submit"`
}

// LeaveDayRequest is one day of a leave submission.
type LeaveDayRequest struct {
	Date    string `json:"date"`
	Session string `json:"session"`
}

// SubmitLeaveRequest is the leave submission body. Days must fall inside
// [from, to]; the server recomputes eligibility and rejects any day the
// calculator disables.
type SubmitLeaveRequest struct {
	LeaveType string            `json:"leave_type"`
	Reason    string            `json:"reason"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Days      []LeaveDayRequest `json:"days"`

	// OptionalHoliday switches to the single-day optional-holiday flow;
	// From/To/Days are ignored when set.
	OptionalHoliday string `json:"optional_holiday,omitempty"`
}

// LeaveRequestDTO is the stored request returned on submission.
type LeaveRequestDTO struct {
	ID        string  `json:"id"`
	LeaveType string  `json:"leave_type"`
	Status    string  `json:"status"`
	Units     float64 `json:"units"`
}

// =============================================================================
// HOLIDAYS AND SUBSCRIPTIONS
// =============================================================================

// HolidayDTO mirrors a calendar entry.
type HolidayDTO struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// SubscribeRequest registers a browser push subscription, in the shape the
// Push API hands to the frontend.
type SubscribeRequest struct {
	ReceiverID string `json:"receiver_id"`
	Endpoint   string `json:"endpoint"`
	Keys       struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
