/*
Package notify fans attendance events out to their audience.

PURPOSE:
  A single workforce event (a late arrival, a leave decision) concerns
  several parties at once: the worker, their manager, the HR pool, the
  admin pool, and an executive observer. The Dispatcher expands one event
  into per-recipient messages, deduplicates identities that appear in more
  than one role, and delivers through a pluggable Transport.

DELIVERY SEMANTICS:
  Best effort, per recipient. A failed send is logged and skipped; it
  never aborts the remaining deliveries and never fails the business
  operation that raised the event. Attendance and leave workflows must
  not depend on the notification channel being healthy.

SEE ALSO:
  - webpush.go: the Web Push transport
*/
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Priority orders messages for display and delivery urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Message is one notification addressed to one recipient.
type Message struct {
	ID         string   `json:"id"`
	ReceiverID string   `json:"receiver_id"`
	SenderID   string   `json:"sender_id,omitempty"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Domain     string   `json:"domain"`
	Priority   Priority `json:"priority"`
}

// Transport delivers a single message to a single recipient.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// AUDIENCE
// =============================================================================

// Audience names the parties an attendance event concerns. Empty IDs and
// pool entries are skipped at dispatch time.
type Audience struct {
	EmployeeID   string
	EmployeeName string
	ManagerID    string
	HRPool       []string
	AdminPool    []string
	ExecutiveID  string
}

// LateArrival describes a check-in past the shift start.
type LateArrival struct {
	MinutesLate  int
	CheckInAt    time.Time
	ShiftStartAt time.Time
}

// =============================================================================
// DISPATCHER
// =============================================================================

// DefaultLateThresholdMinutes is the lateness below which no fan-out fires.
const DefaultLateThresholdMinutes = 15

// Dispatcher expands events into deduplicated per-recipient messages.
type Dispatcher struct {
	transport Transport
	threshold int
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher over the given transport.
// thresholdMinutes <= 0 defaults to DefaultLateThresholdMinutes.
func NewDispatcher(transport Transport, thresholdMinutes int, logger *slog.Logger) *Dispatcher {
	if thresholdMinutes <= 0 {
		thresholdMinutes = DefaultLateThresholdMinutes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{transport: transport, threshold: thresholdMinutes, logger: logger}
}

// DispatchLateArrival fans a late check-in out to the full audience.
// Lateness at or below the threshold is not an event; nothing is sent.
// Returns the number of messages delivered.
func (d *Dispatcher) DispatchLateArrival(ctx context.Context, aud Audience, ev LateArrival) int {
	if ev.MinutesLate <= d.threshold {
		return 0
	}

	when := ev.CheckInAt.Format("15:04")
	body := aud.EmployeeName + " checked in at " + when +
		", " + formatMinutes(ev.MinutesLate) + " after shift start"

	msgs := make([]Message, 0, 4+len(aud.HRPool)+len(aud.AdminPool))
	msgs = append(msgs, Message{
		ReceiverID: aud.EmployeeID,
		Title:      "Late check-in recorded",
		Body:       "You checked in " + formatMinutes(ev.MinutesLate) + " after shift start.",
		Priority:   PriorityMedium,
	})
	msgs = append(msgs, Message{
		ReceiverID: aud.ManagerID,
		SenderID:   aud.EmployeeID,
		Title:      "Late arrival on your team",
		Body:       body,
		Priority:   PriorityMedium,
	})
	for _, id := range aud.HRPool {
		msgs = append(msgs, Message{
			ReceiverID: id,
			Title:      "Late arrival",
			Body:       body,
			Priority:   PriorityLow,
		})
	}
	for _, id := range aud.AdminPool {
		msgs = append(msgs, Message{
			ReceiverID: id,
			Title:      "Late arrival",
			Body:       body,
			Priority:   PriorityHigh,
		})
	}
	msgs = append(msgs, Message{
		ReceiverID: aud.ExecutiveID,
		Title:      "Late arrival",
		Body:       body,
		Priority:   PriorityHigh,
	})

	return d.deliver(ctx, msgs)
}

// DispatchLeaveSubmitted notifies the approval chain of a new leave request.
func (d *Dispatcher) DispatchLeaveSubmitted(ctx context.Context, aud Audience, leaveType string, units float64) int {
	body := fmt.Sprintf("%s requested %g units of %s leave", aud.EmployeeName, units, leaveType)

	msgs := make([]Message, 0, 2+len(aud.HRPool))
	msgs = append(msgs, Message{
		ReceiverID: aud.ManagerID,
		SenderID:   aud.EmployeeID,
		Title:      "Leave request awaiting review",
		Body:       body,
		Priority:   PriorityMedium,
	})
	for _, id := range aud.HRPool {
		msgs = append(msgs, Message{
			ReceiverID: id,
			Title:      "Leave request submitted",
			Body:       body,
			Priority:   PriorityLow,
		})
	}

	return d.deliver(ctx, msgs)
}

// deliver sends each message at most once per distinct recipient, skipping
// blanks. Failures are logged and do not stop the remaining sends.
func (d *Dispatcher) deliver(ctx context.Context, msgs []Message) int {
	seen := make(map[string]struct{}, len(msgs))
	sent := 0

	for _, msg := range msgs {
		if msg.ReceiverID == "" {
			continue
		}
		if _, dup := seen[msg.ReceiverID]; dup {
			continue
		}
		seen[msg.ReceiverID] = struct{}{}

		msg.ID = uuid.NewString()
		msg.Domain = "attendance"

		if err := d.transport.Send(ctx, msg); err != nil {
			d.logger.Warn("notification delivery failed",
				"receiver", msg.ReceiverID, "title", msg.Title, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func formatMinutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
