package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/engine"
)

// =============================================================================
// FAKES
// =============================================================================

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeService simulates the authoritative backend: mutations update the
// snapshot the way the server would, and every call is counted so tests can
// assert "zero network calls" preconditions.
type fakeService struct {
	snap       Snapshot
	checkInRes CheckInResult

	snapshotErr error
	mutationErr error

	snapshotCalls int
	mutationCalls int
}

func (f *fakeService) Snapshot(context.Context, string) (Snapshot, error) {
	f.snapshotCalls++
	if f.snapshotErr != nil {
		return Snapshot{}, f.snapshotErr
	}
	return f.snap, nil
}

func (f *fakeService) CheckIn(context.Context, string, Geo) (CheckInResult, error) {
	f.mutationCalls++
	if f.mutationErr != nil {
		return CheckInResult{}, f.mutationErr
	}
	f.snap.CheckedIn = true
	return f.checkInRes, nil
}

func (f *fakeService) BreakIn(context.Context, string) error {
	f.mutationCalls++
	if f.mutationErr != nil {
		return f.mutationErr
	}
	started := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)
	f.snap.OnBreak = true
	f.snap.CurrentBreakStartedAt = &started
	return nil
}

func (f *fakeService) BreakOut(context.Context, string) error {
	f.mutationCalls++
	if f.mutationErr != nil {
		return f.mutationErr
	}
	f.snap.OnBreak = false
	f.snap.CurrentBreakStartedAt = nil
	return nil
}

func (f *fakeService) CheckOut(context.Context, string) error {
	f.mutationCalls++
	if f.mutationErr != nil {
		return f.mutationErr
	}
	f.snap.CheckedIn = false
	f.snap.CheckedOut = true
	return nil
}

func newTestMachine(t *testing.T, svc *fakeService) *Machine {
	t.Helper()
	m := NewMachine(Config{
		EmployeeID:   "emp-1",
		Service:      svc,
		Clock:        fixedClock{now: time.Date(2024, time.June, 3, 12, 5, 0, 0, time.UTC)},
		TickInterval: time.Hour, // ticks driven manually in tests
	})
	t.Cleanup(m.Close)
	return m
}

// =============================================================================
// PRECONDITIONS - Zero network calls on violations
// =============================================================================

func TestCheckOut_WhileOnBreak_FailsLocally(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedIn: true, OnBreak: true}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)
	svc.snapshotCalls = 0

	err = m.CheckOut(context.Background())

	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "end your break first")
	assert.Zero(t, svc.mutationCalls, "backend must not be contacted")
	assert.Zero(t, svc.snapshotCalls, "no resync on local failure")
	assert.Equal(t, StateOnBreak, m.State(), "state unchanged")
}

func TestBreakIn_FromOut_Rejected(t *testing.T) {
	svc := &fakeService{}
	m := newTestMachine(t, svc)

	err := m.BreakIn(context.Background())

	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Zero(t, svc.mutationCalls)
}

func TestCheckIn_WhenAlreadyWorking_Rejected(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedIn: true}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)
	svc.mutationCalls = 0

	err = m.CheckIn(context.Background(), Geo{})

	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Zero(t, svc.mutationCalls)
}

func TestCheckIn_AfterCheckOut_Rejected(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedOut: true}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	err = m.CheckIn(context.Background(), Geo{})

	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

// =============================================================================
// TRANSITIONS AND RESYNC
// =============================================================================

func TestFullDay_StateProgression(t *testing.T) {
	svc := &fakeService{}
	m := newTestMachine(t, svc)
	ctx := context.Background()

	assert.Equal(t, StateOut, m.State())

	require.NoError(t, m.CheckIn(ctx, Geo{Lat: 48.85, Lng: 2.35, Accuracy: 10}))
	assert.Equal(t, StateWorking, m.State())

	require.NoError(t, m.BreakIn(ctx))
	assert.Equal(t, StateOnBreak, m.State())

	require.NoError(t, m.BreakOut(ctx))
	assert.Equal(t, StateWorking, m.State())

	require.NoError(t, m.CheckOut(ctx))
	assert.Equal(t, StateCheckedOut, m.State())

	// Every reachable snapshot honored the invariants.
	assert.True(t, m.LastSnapshot().Consistent())
}

func TestMutationFailure_LeavesStateUntouched(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedIn: true, WorkedSeconds: 120}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	svc.mutationErr = errors.New("gateway timeout")
	err = m.BreakIn(context.Background())

	assert.ErrorIs(t, err, engine.ErrSyncFailed)
	assert.Equal(t, StateWorking, m.State())
	assert.Equal(t, int64(120), m.Timer().WorkedSeconds)
}

func TestResync_OverwritesCountersWholesale(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedIn: true, WorkedSeconds: 30}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	// Local projection drifts...
	for i := 0; i < 10; i++ {
		m.tick()
	}
	assert.Equal(t, int64(40), m.Timer().WorkedSeconds)

	// ...until the server says otherwise.
	svc.snap.WorkedSeconds = 3600
	svc.snap.BreakSeconds = 600
	_, err = m.Resync(context.Background())
	require.NoError(t, err)

	timer := m.Timer()
	assert.Equal(t, int64(3600), timer.WorkedSeconds)
	assert.Equal(t, int64(600), timer.BreakSeconds)
}

func TestResync_SeedsCurrentBreakElapsed(t *testing.T) {
	started := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{snap: Snapshot{CheckedIn: true, OnBreak: true, CurrentBreakStartedAt: &started}}
	m := newTestMachine(t, svc) // clock fixed at 12:05:00

	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(300), m.Timer().CurrentBreakElapsed)
}

func TestResync_BreakElapsedNeverNegative(t *testing.T) {
	// Server clock ahead of ours: the seed clamps at zero.
	started := time.Date(2024, time.June, 3, 12, 30, 0, 0, time.UTC)
	svc := &fakeService{snap: Snapshot{CheckedIn: true, OnBreak: true, CurrentBreakStartedAt: &started}}
	m := newTestMachine(t, svc)

	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.Timer().CurrentBreakElapsed)
}

func TestResync_WithoutBreakStartResetsElapsed(t *testing.T) {
	started := time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{snap: Snapshot{CheckedIn: true, OnBreak: true, CurrentBreakStartedAt: &started}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)
	require.Positive(t, m.Timer().CurrentBreakElapsed)

	svc.snap.OnBreak = false
	svc.snap.CurrentBreakStartedAt = nil
	_, err = m.Resync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.Timer().CurrentBreakElapsed)
}

func TestResync_RejectsInconsistentSnapshot(t *testing.T) {
	svc := &fakeService{snap: Snapshot{CheckedIn: true, WorkedSeconds: 42}}
	m := newTestMachine(t, svc)
	_, err := m.Resync(context.Background())
	require.NoError(t, err)

	svc.snap = Snapshot{OnBreak: true} // on break without being checked in
	_, err = m.Resync(context.Background())

	assert.ErrorIs(t, err, engine.ErrSyncFailed)
	assert.Equal(t, int64(42), m.Timer().WorkedSeconds, "last-known-good kept")
}

// =============================================================================
// LATE-ARRIVAL HOOK
// =============================================================================

func TestCheckIn_LateBeyondGrace_FiresHook(t *testing.T) {
	svc := &fakeService{checkInRes: CheckInResult{Late: true, LateByMinutes: 22}}
	var gotMinutes int
	m := NewMachine(Config{
		EmployeeID: "emp-1",
		Service:    svc,
		OnLateArrival: func(_ context.Context, minutesLate int) {
			gotMinutes = minutesLate
		},
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.CheckIn(context.Background(), Geo{}))

	assert.Equal(t, 22, gotMinutes)
}

func TestCheckIn_WithinGrace_NoHook(t *testing.T) {
	svc := &fakeService{checkInRes: CheckInResult{Late: true, LateByMinutes: 15}}
	fired := false
	m := NewMachine(Config{
		EmployeeID:    "emp-1",
		Service:       svc,
		OnLateArrival: func(context.Context, int) { fired = true },
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.CheckIn(context.Background(), Geo{}))

	assert.False(t, fired, "15 minutes is within the default grace threshold")
}

// =============================================================================
// TICK EXCLUSIVITY
// =============================================================================

func TestTick_ExactlyOneCounterAdvances(t *testing.T) {
	m := newTestMachine(t, &fakeService{})

	m.apply(Snapshot{CheckedIn: true, WorkedSeconds: 10, BreakSeconds: 5})
	m.tick()
	timer := m.Timer()
	assert.Equal(t, int64(11), timer.WorkedSeconds)
	assert.Equal(t, int64(5), timer.BreakSeconds)

	m.apply(Snapshot{CheckedIn: true, OnBreak: true, WorkedSeconds: 11, BreakSeconds: 5})
	m.tick()
	timer = m.Timer()
	assert.Equal(t, int64(11), timer.WorkedSeconds)
	assert.Equal(t, int64(6), timer.BreakSeconds)

	m.apply(Snapshot{CheckedOut: true, WorkedSeconds: 11, BreakSeconds: 6})
	m.tick()
	timer = m.Timer()
	assert.Equal(t, int64(11), timer.WorkedSeconds)
	assert.Equal(t, int64(6), timer.BreakSeconds)
}
