/*
Package report renders monthly attendance data as an xlsx workbook.

PURPOSE:
  HR downloads one workbook per employee per month: a row per attended
  day with check-in/out instants, lateness, and the derived worked and
  break durations, plus a totals row. The layout is deliberately flat so
  the file survives being fed into whatever spreadsheet tooling HR uses.
*/
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/warp/attendance-engine/store/sqlite"
)

var columns = []string{"Date", "Check-in", "Check-out", "Late (min)", "Worked", "Break"}

// MonthlyWorkbook builds the attendance workbook for one employee-month.
// Caller owns closing the returned file.
func MonthlyWorkbook(employeeID string, year int, month time.Month, rows []sqlite.AttendanceRow) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := fmt.Sprintf("%04d-%02d", year, month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	title := fmt.Sprintf("Attendance %s %s %d", employeeID, month, year)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", header); err != nil {
		return nil, err
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 3)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, header); err != nil {
			return nil, err
		}
	}

	var totalWorked, totalBreak int64
	for i, row := range rows {
		r := i + 4
		checkOut := ""
		if row.CheckOutAt != nil {
			checkOut = row.CheckOutAt.Format("15:04")
		}
		values := []any{
			row.Date.String(),
			row.CheckInAt.Format("15:04"),
			checkOut,
			row.LateMinutes,
			formatDuration(row.WorkedSeconds),
			formatDuration(row.BreakSeconds),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
		totalWorked += row.WorkedSeconds
		totalBreak += row.BreakSeconds
	}

	totalRow := len(rows) + 5
	totals := map[string]any{
		"A": "Totals",
		"E": formatDuration(totalWorked),
		"F": formatDuration(totalBreak),
	}
	for col, v := range totals {
		cell := fmt.Sprintf("%s%d", col, totalRow)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, header); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(sheet, "A", "F", 14); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteMonthly streams the workbook to w.
func WriteMonthly(w io.Writer, employeeID string, year int, month time.Month, rows []sqlite.AttendanceRow) error {
	f, err := MonthlyWorkbook(employeeID, year, month, rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// formatDuration renders seconds as "7h30m".
func formatDuration(secs int64) string {
	d := time.Duration(secs) * time.Second
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
