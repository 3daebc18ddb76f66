package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/balance"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/store/sqlite"
)

// memoryTransport keeps dispatched notifications in memory.
type memoryTransport struct {
	sent []notify.Message
}

func (m *memoryTransport) Send(_ context.Context, msg notify.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	*httptest.Server
	store     *sqlite.Store
	transport *memoryTransport
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Audience.ManagerID = "mgr-1"
	cfg.Audience.HRPool = []string{"hr-1"}

	transport := &memoryTransport{}
	dispatcher := notify.NewDispatcher(transport, cfg.Shift.GraceMinutes, nil)

	h := api.NewHandler(store, cfg, dispatcher)
	t.Cleanup(h.Close)

	srv := httptest.NewServer(api.NewRouter(h))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, transport: transport}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

// futureWeekday returns the next date at least 20 days out that falls on
// the wanted weekday, keeping test ranges clear of "today".
func futureWeekday(day time.Weekday) engine.Date {
	d := engine.Today().AddDays(20)
	for d.Weekday() != day {
		d = d.AddDays(1)
	}
	return d
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestAttendance_FullDayFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/check-in",
		api.CheckInRequest{Lat: 48.85, Lng: 2.35, Accuracy: 12})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var dto api.AttendanceDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, "WORKING", dto.State)

	resp, _ = ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/break-in", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Checking out while on break is a local precondition failure.
	resp, body = ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/check-out", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "end your break first")

	resp, _ = ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/break-out", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/check-out", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, "CHECKED_OUT", dto.State)
	assert.Equal(t, "IDLE", dto.RunningMode)
}

func TestAttendance_DoubleCheckInConflicts(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/check-in", api.CheckInRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/employees/emp-1/attendance/check-in", api.CheckInRequest{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAttendance_GetStateResyncs(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/employees/emp-1/attendance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.AttendanceDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, "OUT", dto.State)
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

func TestEligibility_RangeVerdicts(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	friday := futureWeekday(time.Friday)
	tuesday := friday.AddDays(4)

	// The Tuesday after the weekend is a public holiday.
	require.NoError(t, ts.store.SaveHoliday(ctx, calendar.Holiday{
		ID: "h1", Date: tuesday, Kind: calendar.KindPublic, Name: "Founders Day", Active: true,
	}))

	resp, body := ts.do(t, http.MethodGet,
		fmt.Sprintf("/api/employees/emp-1/leave/eligibility?from=%s&to=%s", friday, tuesday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var dto api.EligibilityDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	require.Len(t, dto.Days, 5)

	assert.True(t, dto.Days[0].Enabled, "Friday")
	assert.Equal(t, "SANDWICH_BRIDGE", dto.Days[1].Reason, "bridged Saturday")
	assert.True(t, dto.Days[1].Enabled)
	assert.Equal(t, "SANDWICH_BRIDGE", dto.Days[2].Reason, "bridged Sunday")
	assert.True(t, dto.Days[3].Enabled, "Monday")
	assert.Equal(t, "HOLIDAY", dto.Days[4].Reason)
	assert.False(t, dto.Days[4].Enabled)
}

func TestEligibility_OptionalHolidayFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	past := engine.Today().AddDays(-10)
	require.NoError(t, ts.store.SaveHoliday(ctx, calendar.Holiday{
		ID: "h1", Date: past, Kind: calendar.KindOptional, Name: "Festival", Active: true,
	}))

	resp, body := ts.do(t, http.MethodGet,
		"/api/employees/emp-1/leave/eligibility?optional_holiday="+past.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var dto api.EligibilityDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	require.Len(t, dto.Days, 1)
	assert.True(t, dto.Days[0].Enabled, "past optional holidays stay enabled for display")
	assert.True(t, dto.PastOptionalHoliday, "but submission is gated")
}

func TestEligibility_RejectsNonOptionalDate(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet,
		"/api/employees/emp-1/leave/eligibility?optional_holiday="+engine.Today().String(), nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// BALANCE AND SUBMISSION
// =============================================================================

func seedBalance(t *testing.T, ts *testServer, available float64) {
	t.Helper()
	require.NoError(t, ts.store.SaveTypeBalance(context.Background(), "emp-1", balance.TypeBalance{
		Code: "CL", Name: "Casual Leave", Windowed: true,
		AvailableThisMonth: engine.NewUnits(available),
	}))
}

func TestBalance_PendingReservesCapacity(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 2)

	monday := futureWeekday(time.Monday)
	resp, body := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType: "CL",
		From:      monday.String(),
		To:        monday.String(),
		Days:      []api.LeaveDayRequest{{Date: monday.String(), Session: "FULL"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = ts.do(t, http.MethodGet,
		"/api/employees/emp-1/leave/balance?type=CL&requested=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.BalanceDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, 2.0, dto.Raw)
	assert.Equal(t, 1.0, dto.Effective, "pending unit reserved")
	assert.False(t, dto.CanSubmit)
}

func TestBalance_MissingRecordIsZero(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet,
		"/api/employees/emp-1/leave/balance?type=EL&requested=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dto api.BalanceDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Zero(t, dto.Effective)
	assert.False(t, dto.CanSubmit)
}

func TestSubmitLeave_HalfDayUnits(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 2)

	monday := futureWeekday(time.Monday)
	tuesday := monday.AddDays(1)

	resp, body := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType: "CL",
		From:      monday.String(),
		To:        tuesday.String(),
		Days: []api.LeaveDayRequest{
			{Date: monday.String(), Session: "FULL"},
			{Date: tuesday.String(), Session: "FIRST_HALF"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var dto api.LeaveRequestDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	assert.Equal(t, 1.5, dto.Units)
	assert.Equal(t, "PENDING", dto.Status)
}

func TestSubmitLeave_DisabledDayRejected(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 5)

	saturday := futureWeekday(time.Saturday)
	resp, body := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType: "CL",
		From:      saturday.String(),
		To:        saturday.String(),
		Days:      []api.LeaveDayRequest{{Date: saturday.String(), Session: "FULL"}},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestSubmitLeave_InsufficientBalanceRejected(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 0.5)

	monday := futureWeekday(time.Monday)
	resp, body := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType: "CL",
		From:      monday.String(),
		To:        monday.String(),
		Days:      []api.LeaveDayRequest{{Date: monday.String(), Session: "FULL"}},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Insufficient balance")
}

func TestSubmitLeave_PastOptionalHolidayRejected(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 5)

	past := engine.Today().AddDays(-10)
	require.NoError(t, ts.store.SaveHoliday(context.Background(), calendar.Holiday{
		ID: "h1", Date: past, Kind: calendar.KindOptional, Name: "Festival", Active: true,
	}))

	resp, _ := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType:       "CL",
		OptionalHoliday: past.String(),
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitLeave_NotifiesApprovalChain(t *testing.T) {
	ts := newTestServer(t)
	seedBalance(t, ts, 2)

	monday := futureWeekday(time.Monday)
	resp, _ := ts.do(t, http.MethodPost, "/api/employees/emp-1/leave/requests", api.SubmitLeaveRequest{
		LeaveType: "CL",
		From:      monday.String(),
		To:        monday.String(),
		Days:      []api.LeaveDayRequest{{Date: monday.String(), Session: "FULL"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	receivers := map[string]bool{}
	for _, msg := range ts.transport.sent {
		receivers[msg.ReceiverID] = true
	}
	assert.True(t, receivers["mgr-1"])
	assert.True(t, receivers["hr-1"])
}

// =============================================================================
// HOLIDAYS, SUBSCRIPTIONS, REPORTS
// =============================================================================

func TestHolidays_CreateListDelete(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/holidays", api.HolidayDTO{
		Date: "2030-12-25", Kind: "PUBLIC", Name: "Christmas", Active: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created api.HolidayDTO
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	resp, body = ts.do(t, http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []api.HolidayDTO
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)

	resp, _ = ts.do(t, http.MethodDelete, "/api/holidays/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHolidays_CreateRejectsBadKind(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/holidays", api.HolidayDTO{
		Date: "2030-12-25", Kind: "BANK", Name: "Nope", Active: true,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubscribe(t *testing.T) {
	ts := newTestServer(t)

	req := api.SubscribeRequest{ReceiverID: "emp-1", Endpoint: "https://push/a"}
	req.Keys.P256DH = "k"
	req.Keys.Auth = "a"

	resp, _ := ts.do(t, http.MethodPost, "/api/subscriptions", req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	subs, err := ts.store.SubscriptionsFor(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestAttendanceReport_StreamsWorkbook(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet,
		"/api/reports/attendance?employee_id=emp-1&year=2024&month=6", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Equal(t, []byte{'P', 'K'}, body[:2])
}

func TestAttendanceReport_ValidatesParams(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/reports/attendance?employee_id=emp-1&year=2024&month=13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
