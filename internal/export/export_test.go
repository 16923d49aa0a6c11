package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
)

type sliceSource []*bookings.Booking

func (s sliceSource) ListCreatedBetween(_ context.Context, from, to time.Time) ([]*bookings.Booking, error) {
	var out []*bookings.Booking
	for _, b := range s {
		if !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func fixture() sliceSource {
	day := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	bea := "Bea"
	return sliceSource{
		{ID: 1, Username: "ana", ServiceType: store.ServiceDeep, ScheduledFor: day.Add(48 * time.Hour), Address: "1 Main St",
			WorkerName: &bea, Status: store.StatusScheduled, WorkerResponse: store.ResponseAccepted, CreatedAt: day},
		{ID: 2, Username: "cy", ServiceType: store.ServiceOffice, ScheduledFor: day.Add(3 * time.Hour), Address: "2 High St",
			RushCleaning: true, Status: store.StatusCancelled, WorkerResponse: store.ResponsePending, CreatedAt: day.Add(time.Hour)},
		{ID: 3, Username: "old", ServiceType: store.ServiceStandard, Status: store.StatusCompleted, CreatedAt: day.AddDate(0, -1, 0)},
	}
}

func TestWorkbook(t *testing.T) {
	e := NewExporter(zap.NewNop(), fixture(), time.UTC)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	n, err := e.Write(context.Background(), &buf, from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{BookingsSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, bookingHeaders, rows[0])
	assert.Equal(t, []string{"1", "2025-03-04 09:00", "ana", "Deep Cleaning", "2025-03-06 09:00", "1 Main St", "Bea", "Scheduled", "Accepted", "No"}, rows[1])
	assert.Equal(t, "Yes", rows[2][9])
	assert.Equal(t, "", rows[2][6])

	total, err := f.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	rush, _ := f.GetCellValue(SummarySheet, "B3")
	assert.Equal(t, "1", rush)
	cancelled, _ := f.GetCellValue(SummarySheet, "A9")
	assert.Equal(t, "Cancelled", cancelled)
	pct, _ := f.GetCellValue(SummarySheet, "C9")
	assert.Equal(t, "50", pct)
}

func TestSaveAs(t *testing.T) {
	e := NewExporter(zap.NewNop(), fixture(), nil)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := e.SaveAs(context.Background(), dir, from, to)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2025-03-01_to_2025-04-01.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestEmptyRange(t *testing.T) {
	e := NewExporter(zap.NewNop(), fixture(), nil)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := e.Workbook(context.Background(), at, at)
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	now := time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC) // already the 16th in Berlin

	from, to, err := Range("", "", now, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, berlin), to)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, berlin), from)

	from, to, err = Range("2025-03-01", "2025-03-31", now, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, berlin), from)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, berlin), to, "date-only end is inclusive")

	_, _, err = Range("yesterday", "", now, berlin)
	assert.Error(t, err)
	_, _, err = Range("2025-03-10", "2025-03-01", now, berlin)
	assert.Error(t, err)
}
