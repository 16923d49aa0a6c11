// Package export writes booking spreadsheets for administrators.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/metrics"
	"github.com/improveclean/cleaning-site/internal/service/reports"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
)

const (
	BookingsSheet = "Bookings"
	SummarySheet  = "Summary"

	cellTime = "2006-01-02 15:04"
)

var bookingHeaders = []string{
	"ID", "Created", "Customer", "Service", "Scheduled for", "Address",
	"Worker", "Status", "Worker response", "Rush", "Notes",
}

type BookingSource interface {
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]*bookings.Booking, error)
}

type Exporter struct {
	log      *zap.Logger
	bookings BookingSource
	loc      *time.Location
}

func NewExporter(log *zap.Logger, bookings BookingSource, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{log: log, bookings: bookings, loc: loc}
}

// FileName is the suggested name for a [from, to) export.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format(time.DateOnly), to.Format(time.DateOnly))
}

// Workbook builds the spreadsheet for bookings created in [from, to).
// The caller closes the returned file.
func (e *Exporter) Workbook(ctx context.Context, from, to time.Time) (*excelize.File, int, error) {
	if !to.After(from) {
		return nil, 0, fmt.Errorf("empty export range %s - %s", from.Format(cellTime), to.Format(cellTime))
	}
	rows, err := e.bookings.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting bookings: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(BookingsSheet)
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	header, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingsSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingsSheet, "A1", last, header)

	statusCounts := map[string]int{}
	rush := 0
	for i, b := range rows {
		worker := ""
		if b.WorkerName != nil {
			worker = *b.WorkerName
		}
		values := []any{
			b.ID,
			b.CreatedAt.In(e.loc).Format(cellTime),
			b.Username,
			b.ServiceType.Label(),
			b.ScheduledFor.In(e.loc).Format(cellTime),
			b.Address,
			worker,
			b.Status.Label(),
			b.WorkerResponse.Label(),
			yesNo(b.RushCleaning),
			b.Notes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("error writing row: %w", err)
		}
		statusCounts[string(b.Status)]++
		if b.RushCleaning {
			rush++
		}
	}
	_ = f.SetColWidth(BookingsSheet, "A", "A", 8)
	_ = f.SetColWidth(BookingsSheet, "B", "E", 18)
	_ = f.SetColWidth(BookingsSheet, "F", "F", 40)
	_ = f.SetColWidth(BookingsSheet, "G", "J", 16)
	_ = f.SetColWidth(BookingsSheet, "K", "K", 40)

	e.writeSummary(f, header, from, to, len(rows), rush, statusCounts)

	metrics.ExportRowsTotal.Add(float64(len(rows)))
	return f, len(rows), nil
}

func (e *Exporter) writeSummary(f *excelize.File, header int, from, to time.Time, total, rush int, counts map[string]int) {
	_ = f.SetCellValue(SummarySheet, "A1", "Period")
	_ = f.SetCellValue(SummarySheet, "B1", fmt.Sprintf("%s - %s", from.In(e.loc).Format(cellTime), to.In(e.loc).Format(cellTime)))
	_ = f.SetCellValue(SummarySheet, "A2", "Total bookings")
	_ = f.SetCellValue(SummarySheet, "B2", total)
	_ = f.SetCellValue(SummarySheet, "A3", "Rush bookings")
	_ = f.SetCellValue(SummarySheet, "B3", rush)

	_ = f.SetSheetRow(SummarySheet, "A5", &[]any{"Status", "Total", "Percent"})
	_ = f.SetCellStyle(SummarySheet, "A5", "C5", header)
	for i, row := range reports.StatusSummary(counts, total) {
		cell, _ := excelize.CoordinatesToCellName(1, i+6)
		_ = f.SetSheetRow(SummarySheet, cell, &[]any{row.Label, row.Total, row.Percent})
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 18)
	_ = f.SetColWidth(SummarySheet, "B", "B", 36)
}

// Write streams the workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, from, to time.Time) (int, error) {
	f, n, err := e.Workbook(ctx, from, to)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("error writing workbook: %w", err)
	}
	return n, nil
}

// SaveAs writes the workbook under dir and returns its path.
func (e *Exporter) SaveAs(ctx context.Context, dir string, from, to time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	f, n, err := e.Workbook(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	e.log.Info("Excel file created", zap.String("file_path", path), zap.Int("rows", n))
	return path, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Range parses from/to values as local dates (YYYY-MM-DD) or
// RFC 3339. The range defaults to the last 30 days; a date-only `to` is
// inclusive.
func Range(fromRaw, toRaw string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	today := now.In(loc)
	y, m, d := today.Date()
	to := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	from := to.AddDate(0, 0, -30)

	if fromRaw != "" {
		t, err := parseBound(fromRaw, loc, false)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("bad from")
		}
		from = t
	}
	if toRaw != "" {
		t, err := parseBound(toRaw, loc, true)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("bad to")
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func parseBound(raw string, loc *time.Location, end bool) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		if end {
			return t.AddDate(0, 0, 1), nil
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
