package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/notify"
)

// recordingTransport captures sent messages and can fail selected receivers.
type recordingTransport struct {
	sent    []notify.Message
	failFor map[string]error
}

func (r *recordingTransport) Send(_ context.Context, msg notify.Message) error {
	if err, ok := r.failFor[msg.ReceiverID]; ok {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func fullAudience() notify.Audience {
	return notify.Audience{
		EmployeeID:   "emp-1",
		EmployeeName: "Ada",
		ManagerID:    "mgr-1",
		HRPool:       []string{"hr-1", "hr-2"},
		AdminPool:    []string{"adm-1"},
		ExecutiveID:  "exec-1",
	}
}

func lateBy(minutes int) notify.LateArrival {
	shift := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	return notify.LateArrival{
		MinutesLate:  minutes,
		ShiftStartAt: shift,
		CheckInAt:    shift.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestDispatchLateArrival_BelowThresholdIsSilent(t *testing.T) {
	tr := &recordingTransport{}
	d := notify.NewDispatcher(tr, 15, nil)

	sent := d.DispatchLateArrival(context.Background(), fullAudience(), lateBy(15))

	assert.Zero(t, sent, "exactly at threshold is still within grace")
	assert.Empty(t, tr.sent)
}

func TestDispatchLateArrival_FullFanOut(t *testing.T) {
	tr := &recordingTransport{}
	d := notify.NewDispatcher(tr, 15, nil)

	sent := d.DispatchLateArrival(context.Background(), fullAudience(), lateBy(25))

	// employee + manager + 2 HR + 1 admin + executive
	assert.Equal(t, 6, sent)
	require.Len(t, tr.sent, 6)

	byReceiver := map[string]notify.Message{}
	for _, msg := range tr.sent {
		byReceiver[msg.ReceiverID] = msg
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, "attendance", msg.Domain)
	}

	assert.Equal(t, notify.PriorityMedium, byReceiver["emp-1"].Priority)
	assert.Equal(t, notify.PriorityMedium, byReceiver["mgr-1"].Priority)
	assert.Equal(t, "emp-1", byReceiver["mgr-1"].SenderID)
	assert.Equal(t, notify.PriorityLow, byReceiver["hr-1"].Priority)
	assert.Equal(t, notify.PriorityHigh, byReceiver["adm-1"].Priority)
	assert.Equal(t, notify.PriorityHigh, byReceiver["exec-1"].Priority)
}

func TestDispatchLateArrival_DeduplicatesOverlappingRoles(t *testing.T) {
	// The manager also sits in the admin pool; they get exactly one message,
	// in their first-listed role.
	aud := fullAudience()
	aud.AdminPool = []string{"mgr-1", "adm-1"}
	tr := &recordingTransport{}
	d := notify.NewDispatcher(tr, 15, nil)

	d.DispatchLateArrival(context.Background(), aud, lateBy(30))

	count := 0
	for _, msg := range tr.sent {
		if msg.ReceiverID == "mgr-1" {
			count++
			assert.Equal(t, notify.PriorityMedium, msg.Priority, "manager role wins")
		}
	}
	assert.Equal(t, 1, count)
}

func TestDispatchLateArrival_SkipsBlankRecipients(t *testing.T) {
	aud := notify.Audience{EmployeeID: "emp-1", EmployeeName: "Ada"}
	tr := &recordingTransport{}
	d := notify.NewDispatcher(tr, 15, nil)

	sent := d.DispatchLateArrival(context.Background(), aud, lateBy(20))

	assert.Equal(t, 1, sent, "only the employee is addressable")
}

func TestDispatchLateArrival_FailureDoesNotStopFanOut(t *testing.T) {
	tr := &recordingTransport{failFor: map[string]error{
		"mgr-1": errors.New("endpoint unreachable"),
	}}
	d := notify.NewDispatcher(tr, 15, nil)

	sent := d.DispatchLateArrival(context.Background(), fullAudience(), lateBy(25))

	assert.Equal(t, 5, sent, "remaining recipients still delivered")
	for _, msg := range tr.sent {
		assert.NotEqual(t, "mgr-1", msg.ReceiverID)
	}
}

func TestDispatchLeaveSubmitted_ApprovalChainOnly(t *testing.T) {
	tr := &recordingTransport{}
	d := notify.NewDispatcher(tr, 15, nil)

	sent := d.DispatchLeaveSubmitted(context.Background(), fullAudience(), "CASUAL", 1.5)

	assert.Equal(t, 3, sent, "manager plus HR pool")
	for _, msg := range tr.sent {
		assert.NotEqual(t, "exec-1", msg.ReceiverID)
		assert.NotEqual(t, "adm-1", msg.ReceiverID)
	}
}
