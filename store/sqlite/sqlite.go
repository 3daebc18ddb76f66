/*
Package sqlite provides the SQLite-backed reference implementation of the
engine's storage boundaries.

PURPOSE:
  One store implements every persistence interface the engine consumes:

    session.Service          authoritative attendance state (check-in,
                             breaks, check-out, snapshot)
    calendar.HolidaySource   the holiday calendar
    notify.SubscriptionStore web-push subscription persistence
    leave history            committed days, pending units, type balances

  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  holidays:           the policy calendar (public and optional entries)
  leave_requests:     submitted requests with their per-day breakdown
  leave_request_days: one row per requested day (session, half-day flag)
  leave_balances:     per-employee monthly availability snapshots
  attendance_days:    one row per employee per day (check-in/out, lateness)
  attendance_breaks:  break intervals within an attendance day
  push_subscriptions: browser push endpoints keyed by endpoint URL

TIME HANDLING:
  Calendar dates are stored as "YYYY-MM-DD" strings, instants as RFC3339.
  Worked and break seconds are never stored; they are derived from the
  recorded intervals at snapshot time, which is what makes the server
  authoritative over the client's ticking projection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - session/machine.go: the Service consumer
  - calendar/cache.go: the HolidaySource consumer
  - notify/webpush.go: the SubscriptionStore consumer
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/balance"
	"github.com/warp/attendance-engine/calendar"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/session"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// ShiftStart is the "15:04" wall-clock start of the working day,
	// used to compute check-in lateness. Defaults to 09:00.
	ShiftStart string

	// NowFunc supplies the current instant. Replaceable in tests.
	NowFunc func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, ShiftStart: "09:00", NowFunc: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Holiday calendar (public and optional entries)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date ON holidays(date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique ON holidays(date, name);

	-- Leave requests and their per-day breakdown
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id, status);

	CREATE TABLE IF NOT EXISTS leave_request_days (
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		date TEXT NOT NULL,
		session TEXT NOT NULL DEFAULT 'FULL',
		half_day BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (request_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_leave_request_days_date
		ON leave_request_days(date);

	-- Per-employee monthly balance snapshots
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		unlimited BOOLEAN NOT NULL DEFAULT FALSE,
		windowed BOOLEAN NOT NULL DEFAULT FALSE,
		available_month TEXT NOT NULL DEFAULT '0',
		can_carry BOOLEAN NOT NULL DEFAULT FALSE,
		carried TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (employee_id, code)
	);

	-- Attendance: one row per employee per day
	CREATE TABLE IF NOT EXISTS attendance_days (
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		check_in_at TEXT NOT NULL,
		check_out_at TEXT,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		lat REAL, lng REAL, accuracy REAL,
		PRIMARY KEY (employee_id, date)
	);

	CREATE TABLE IF NOT EXISTS attendance_breaks (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_breaks_day
		ON attendance_breaks(employee_id, date);

	-- Web Push subscriptions, keyed by endpoint
	CREATE TABLE IF NOT EXISTS push_subscriptions (
		endpoint TEXT PRIMARY KEY,
		receiver_id TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_push_subscriptions_receiver
		ON push_subscriptions(receiver_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) now() time.Time { return s.NowFunc() }

// =============================================================================
// ATTENDANCE (session.Service interface)
// =============================================================================

// Snapshot derives today's authoritative attendance state. Worked and
// break seconds are recomputed from the stored intervals on every call.
func (s *Store) Snapshot(ctx context.Context, employeeID string) (session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	day := now.Format("2006-01-02")

	var checkInAt string
	var checkOutAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT check_in_at, check_out_at FROM attendance_days WHERE employee_id = ? AND date = ?",
		employeeID, day,
	).Scan(&checkInAt, &checkOutAt)
	if err == sql.ErrNoRows {
		return session.Snapshot{}, nil
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("load attendance day: %w", err)
	}

	checkIn, err := time.Parse(time.RFC3339, checkInAt)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("parse check-in instant: %w", err)
	}

	var snap session.Snapshot
	end := now
	if checkOutAt.Valid {
		snap.CheckedOut = true
		if t, err := time.Parse(time.RFC3339, checkOutAt.String); err == nil {
			end = t
		}
	} else {
		snap.CheckedIn = true
	}

	breakSecs, openBreakStart, err := s.breakSeconds(ctx, employeeID, day, now)
	if err != nil {
		return session.Snapshot{}, err
	}
	snap.BreakSeconds = breakSecs
	if openBreakStart != nil && !snap.CheckedOut {
		snap.OnBreak = true
		snap.CurrentBreakStartedAt = openBreakStart
	}

	worked := int64(end.Sub(checkIn).Seconds()) - breakSecs
	if worked < 0 {
		worked = 0
	}
	snap.WorkedSeconds = worked

	return snap, nil
}

// breakSeconds sums the day's break intervals, open intervals counted up
// to now. Returns the start of the open interval, if any.
func (s *Store) breakSeconds(ctx context.Context, employeeID, day string, now time.Time) (int64, *time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT started_at, ended_at FROM attendance_breaks WHERE employee_id = ? AND date = ? ORDER BY started_at",
		employeeID, day,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("load breaks: %w", err)
	}
	defer rows.Close()

	var total int64
	var openStart *time.Time
	for rows.Next() {
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&startedAt, &endedAt); err != nil {
			return 0, nil, err
		}
		start, err := time.Parse(time.RFC3339, startedAt)
		if err != nil {
			continue
		}
		end := now
		if endedAt.Valid {
			if t, err := time.Parse(time.RFC3339, endedAt.String); err == nil {
				end = t
			}
		} else {
			t := start
			openStart = &t
		}
		if secs := int64(end.Sub(start).Seconds()); secs > 0 {
			total += secs
		}
	}
	return total, openStart, rows.Err()
}

// CheckIn opens today's attendance row and reports lateness against the
// configured shift start.
func (s *Store) CheckIn(ctx context.Context, employeeID string, geo session.Geo) (session.CheckInResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	day := now.Format("2006-01-02")

	lateMinutes := s.lateness(now)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance_days (employee_id, date, check_in_at, late_minutes, lat, lng, accuracy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		employeeID, day, now.Format(time.RFC3339), lateMinutes, geo.Lat, geo.Lng, geo.Accuracy,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return session.CheckInResult{}, fmt.Errorf("already checked in on %s", day)
		}
		return session.CheckInResult{}, fmt.Errorf("record check-in: %w", err)
	}

	return session.CheckInResult{Late: lateMinutes > 0, LateByMinutes: lateMinutes}, nil
}

// lateness returns whole minutes past the shift start, zero when on time.
func (s *Store) lateness(now time.Time) int {
	shift, err := time.Parse("15:04", s.ShiftStart)
	if err != nil {
		return 0
	}
	start := time.Date(now.Year(), now.Month(), now.Day(),
		shift.Hour(), shift.Minute(), 0, 0, now.Location())
	late := int(now.Sub(start).Minutes())
	if late < 0 {
		return 0
	}
	return late
}

// BreakIn opens a break interval. Fails when the employee is not checked
// in or a break is already open.
func (s *Store) BreakIn(ctx context.Context, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	day := now.Format("2006-01-02")

	open, err := s.hasOpenDay(ctx, employeeID, day)
	if err != nil {
		return err
	}
	if !open {
		return fmt.Errorf("not checked in on %s", day)
	}

	var openBreaks int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_breaks WHERE employee_id = ? AND date = ? AND ended_at IS NULL",
		employeeID, day,
	).Scan(&openBreaks); err != nil {
		return fmt.Errorf("count open breaks: %w", err)
	}
	if openBreaks > 0 {
		return fmt.Errorf("break already open on %s", day)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO attendance_breaks (id, employee_id, date, started_at) VALUES (?, ?, ?, ?)",
		fmt.Sprintf("%s-%s-%d", employeeID, day, now.UnixNano()),
		employeeID, day, now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record break start: %w", err)
	}
	return nil
}

// BreakOut closes the open break interval.
func (s *Store) BreakOut(ctx context.Context, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	day := now.Format("2006-01-02")

	res, err := s.db.ExecContext(ctx,
		"UPDATE attendance_breaks SET ended_at = ? WHERE employee_id = ? AND date = ? AND ended_at IS NULL",
		now.Format(time.RFC3339), employeeID, day,
	)
	if err != nil {
		return fmt.Errorf("record break end: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no open break on %s", day)
	}
	return nil
}

// CheckOut closes today's attendance row.
func (s *Store) CheckOut(ctx context.Context, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	day := now.Format("2006-01-02")

	res, err := s.db.ExecContext(ctx,
		"UPDATE attendance_days SET check_out_at = ? WHERE employee_id = ? AND date = ? AND check_out_at IS NULL",
		now.Format(time.RFC3339), employeeID, day,
	)
	if err != nil {
		return fmt.Errorf("record check-out: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no open attendance day on %s", day)
	}
	return nil
}

func (s *Store) hasOpenDay(ctx context.Context, employeeID, day string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_days WHERE employee_id = ? AND date = ? AND check_out_at IS NULL",
		employeeID, day,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check attendance day: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// HOLIDAY CALENDAR (calendar.HolidaySource interface)
// =============================================================================

// ListHolidays returns every calendar entry, active or not.
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, kind, name, active FROM holidays ORDER BY date ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var dateStr, kind string
		if err := rows.Scan(&h.ID, &dateStr, &kind, &h.Name, &h.Active); err != nil {
			return nil, err
		}
		d, err := engine.ParseDate(dateStr)
		if err != nil {
			continue
		}
		h.Date = d
		h.Kind = calendar.HolidayKind(kind)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// SaveHoliday inserts or updates a calendar entry.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holidays (id, date, kind, name, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, name) DO UPDATE SET
			kind = excluded.kind,
			active = excluded.active`,
		h.ID, h.Date.String(), string(h.Kind), h.Name, h.Active,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes a calendar entry by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// =============================================================================
// LEAVE HISTORY AND BALANCES
// =============================================================================

// LeaveDay is one requested day within a leave request.
type LeaveDay struct {
	Date    engine.Date
	Session string
	HalfDay bool
}

// LeaveRequest is a stored leave request with its day breakdown.
type LeaveRequest struct {
	ID         string
	EmployeeID string
	LeaveType  string
	Reason     string
	Status     string // PENDING, APPROVED, REJECTED, CANCELLED
	CreatedAt  time.Time
	Days       []LeaveDay
}

// SaveLeaveRequest persists the request and its days atomically.
func (s *Store) SaveLeaveRequest(ctx context.Context, r LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leave_requests (id, employee_id, leave_type, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.LeaveType, r.Reason, r.Status,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save leave request: %w", err)
	}

	for _, day := range r.Days {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leave_request_days (request_id, date, session, half_day)
			 VALUES (?, ?, ?, ?)`,
			r.ID, day.Date.String(), day.Session, day.HalfDay,
		)
		if err != nil {
			return fmt.Errorf("save leave day %s: %w", day.Date, err)
		}
	}

	return tx.Commit()
}

// CommittedDays returns the dates in [from, to] already held by a pending
// or approved request for the employee.
func (s *Store) CommittedDays(ctx context.Context, employeeID string, from, to engine.Date) ([]engine.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT d.date
		 FROM leave_request_days d
		 JOIN leave_requests r ON r.id = d.request_id
		 WHERE r.employee_id = ? AND r.status IN ('PENDING', 'APPROVED')
		   AND d.date >= ? AND d.date <= ?
		 ORDER BY d.date ASC`,
		employeeID, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load committed days: %w", err)
	}
	defer rows.Close()

	var days []engine.Date
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, err
		}
		d, err := engine.ParseDate(dateStr)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// PendingUnits sums the units reserved by the employee's pending requests
// of the given type. Half days count 0.5, full days 1.0.
func (s *Store) PendingUnits(ctx context.Context, employeeID, leaveType string) (engine.Units, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.half_day
		 FROM leave_request_days d
		 JOIN leave_requests r ON r.id = d.request_id
		 WHERE r.employee_id = ? AND r.leave_type = ? AND r.status = 'PENDING'`,
		employeeID, leaveType,
	)
	if err != nil {
		return engine.ZeroUnits(), fmt.Errorf("load pending units: %w", err)
	}
	defer rows.Close()

	total := engine.ZeroUnits()
	for rows.Next() {
		var halfDay bool
		if err := rows.Scan(&halfDay); err != nil {
			return engine.ZeroUnits(), err
		}
		if halfDay {
			total = total.Add(engine.HalfDay())
		} else {
			total = total.Add(engine.FullDay())
		}
	}
	return total, rows.Err()
}

// TypeBalance loads the employee's balance snapshot for a leave type.
// Returns engine.ErrNoBalanceRecord when no snapshot exists.
func (s *Store) TypeBalance(ctx context.Context, employeeID, code string) (*balance.TypeBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tb balance.TypeBalance
	var availableMonth, carried string
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, unlimited, windowed, available_month, can_carry, carried
		 FROM leave_balances WHERE employee_id = ? AND code = ?`,
		employeeID, code,
	).Scan(&tb.Code, &tb.Name, &tb.Unlimited, &tb.Windowed, &availableMonth, &tb.CanCarryForward, &carried)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("balance %s/%s: %w", employeeID, code, engine.ErrNoBalanceRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	tb.AvailableThisMonth = parseUnits(availableMonth)
	tb.CarriedForward = parseUnits(carried)
	return &tb, nil
}

// SaveTypeBalance upserts a balance snapshot. Used by seeding and the
// periodic balance refresh.
func (s *Store) SaveTypeBalance(ctx context.Context, employeeID string, tb balance.TypeBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leave_balances
			(employee_id, code, name, unlimited, windowed, available_month, can_carry, carried)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(employee_id, code) DO UPDATE SET
			name = excluded.name,
			unlimited = excluded.unlimited,
			windowed = excluded.windowed,
			available_month = excluded.available_month,
			can_carry = excluded.can_carry,
			carried = excluded.carried`,
		employeeID, tb.Code, tb.Name, tb.Unlimited, tb.Windowed,
		tb.AvailableThisMonth.String(), tb.CanCarryForward, tb.CarriedForward.String(),
	)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

// =============================================================================
// PUSH SUBSCRIPTIONS (notify.SubscriptionStore interface)
// =============================================================================

// SaveSubscription upserts a browser push subscription.
func (s *Store) SaveSubscription(ctx context.Context, sub notify.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (endpoint, receiver_id, p256dh, auth, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
			receiver_id = excluded.receiver_id,
			p256dh = excluded.p256dh,
			auth = excluded.auth`,
		sub.Endpoint, sub.ReceiverID, sub.P256DH, sub.Auth,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// SubscriptionsFor returns all push subscriptions held by a recipient.
func (s *Store) SubscriptionsFor(ctx context.Context, receiverID string) ([]notify.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT endpoint, receiver_id, p256dh, auth FROM push_subscriptions WHERE receiver_id = ?",
		receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []notify.PushSubscription
	for rows.Next() {
		var sub notify.PushSubscription
		if err := rows.Scan(&sub.Endpoint, &sub.ReceiverID, &sub.P256DH, &sub.Auth); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubscription prunes a dead endpoint.
func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
	return err
}

// =============================================================================
// REPORTING
// =============================================================================

// AttendanceRow is one day of an employee's monthly attendance report.
type AttendanceRow struct {
	Date          engine.Date
	CheckInAt     time.Time
	CheckOutAt    *time.Time
	LateMinutes   int
	WorkedSeconds int64
	BreakSeconds  int64
}

// MonthlyAttendance returns the employee's attendance rows for a month,
// ordered by date. Days with an open check-out report worked time up to
// the recorded intervals only.
func (s *Store) MonthlyAttendance(ctx context.Context, employeeID string, year int, month time.Month) ([]AttendanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, check_in_at, check_out_at, late_minutes
		 FROM attendance_days
		 WHERE employee_id = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		employeeID, first.Format("2006-01-02"), last.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("load attendance month: %w", err)
	}
	defer rows.Close()

	var report []AttendanceRow
	for rows.Next() {
		var row AttendanceRow
		var dateStr, checkInAt string
		var checkOutAt sql.NullString
		if err := rows.Scan(&dateStr, &checkInAt, &checkOutAt, &row.LateMinutes); err != nil {
			return nil, err
		}

		d, err := engine.ParseDate(dateStr)
		if err != nil {
			continue
		}
		row.Date = d
		row.CheckInAt, _ = time.Parse(time.RFC3339, checkInAt)

		end := row.CheckInAt
		if checkOutAt.Valid {
			if t, err := time.Parse(time.RFC3339, checkOutAt.String); err == nil {
				row.CheckOutAt = &t
				end = t
			}
		}

		breakSecs, _, err := s.breakSeconds(ctx, employeeID, dateStr, end)
		if err != nil {
			return nil, err
		}
		row.BreakSeconds = breakSecs
		if worked := int64(end.Sub(row.CheckInAt).Seconds()) - breakSecs; worked > 0 {
			row.WorkedSeconds = worked
		}

		report = append(report, row)
	}
	return report, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"holidays", "leave_request_days", "leave_requests",
		"leave_balances", "attendance_breaks", "attendance_days",
		"push_subscriptions",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func parseUnits(s string) engine.Units {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return engine.ZeroUnits()
	}
	return engine.Units{Value: d}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
