//go:build integration

package reports

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
	"github.com/improveclean/cleaning-site/internal/store/users"
	"github.com/improveclean/cleaning-site/internal/store/workers"
)

// openSchema applies the DDL inside a throwaway schema of the POSTGRES_URL database.
func openSchema(t *testing.T) *store.DB {
	t.Helper()
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx := context.Background()

	admin, err := store.NewDB(ctx, url, 2)
	require.NoError(t, err)
	name := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	_, err = admin.Pool.Exec(ctx, "CREATE SCHEMA "+name)
	require.NoError(t, err)

	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	db, err := store.NewDB(ctx, url+sep+"search_path="+name, 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		_, _ = admin.Pool.Exec(context.Background(), "DROP SCHEMA "+name+" CASCADE")
		admin.Close()
	})

	_, err = db.Pool.Exec(ctx, store.Schema)
	require.NoError(t, err)
	return db
}

func TestReportsAgainstPostgres(t *testing.T) {
	db := openSchema(t)
	ctx := context.Background()
	log := zap.NewNop()

	usersRepo := users.NewUsersRepository(db, log)
	workersRepo := workers.NewWorkersRepository(db, log)
	bookingsRepo := bookings.NewBookingsRepository(db, log)
	repo := NewReportsRepository(db, log)

	alice, err := usersRepo.Create(ctx, &users.User{Username: "alice", PasswordHash: "x", IsActive: true})
	require.NoError(t, err)
	bob, err := usersRepo.Create(ctx, &users.User{Username: "bob", PasswordHash: "x", IsActive: true})
	require.NoError(t, err)

	ana, err := workersRepo.Create(ctx, &workers.Worker{Name: "Ana", ServiceFocus: store.ServiceDeep, ExperienceYears: 3, IsActive: true})
	require.NoError(t, err)
	_, err = workersRepo.Create(ctx, &workers.Worker{Name: "Idle_Bee", ServiceFocus: store.ServiceOffice, IsActive: true})
	require.NoError(t, err)
	_, err = workersRepo.Create(ctx, &workers.Worker{Name: "Retired", ServiceFocus: store.ServiceStandard, IsActive: false})
	require.NoError(t, err)

	// Wednesday noon UTC.
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	seed := []*bookings.Booking{
		{
			UserID: alice.ID, ServiceType: store.ServiceDeep, Address: "12 Main St", WorkerID: &ana.ID,
			ScheduledFor: time.Date(2025, 3, 14, 14, 0, 0, 0, time.UTC), CreatedAt: now.Add(-day),
			Status: store.StatusScheduled,
		},
		{
			// Monday 02:00 UTC is Sunday evening in New York.
			UserID: alice.ID, ServiceType: store.ServiceStandard, Address: "100% Clean Ave",
			ScheduledFor: time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), CreatedAt: now.Add(-10 * day),
			Status: store.StatusCompleted,
		},
		{
			UserID: bob.ID, ServiceType: store.ServiceOffice, Address: "9 Dock Rd", WorkerID: &ana.ID,
			ScheduledFor: now.Add(-40 * day), CreatedAt: now.Add(-50 * day),
			Status: store.StatusCancelled, RushCleaning: true,
		},
	}
	var lead time.Duration
	for _, b := range seed {
		b.WorkerResponse = store.ResponsePending
		_, err := bookingsRepo.Create(ctx, b)
		require.NoError(t, err)
		lead += b.ScheduledFor.Sub(b.CreatedAt)
	}

	t.Run("BookingTotals", func(t *testing.T) {
		totals, err := repo.BookingTotals(ctx, Window{
			Now: now, Last7: now.Add(-7 * day), Last30: now.Add(-30 * day), NextWeek: now.Add(7 * day),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, totals.Total)
		assert.Equal(t, 1, totals.CreatedLast7)
		assert.Equal(t, 2, totals.CreatedLast30)
		assert.Equal(t, 2, totals.RecentTotal)
		assert.Equal(t, 1, totals.RecentCompleted)
		assert.Equal(t, 0, totals.RecentCancelled)
		assert.Equal(t, 1, totals.RushTotal)
		assert.Equal(t, 1, totals.UnassignedTotal)
		assert.Equal(t, 0, totals.UpcomingUnassigned)
		assert.InDelta(t, lead.Seconds()/3, totals.AvgLeadSeconds, 1)
	})

	t.Run("WorkerLoadSkipsInactive", func(t *testing.T) {
		load, err := repo.WorkerLoad(ctx, now, now.Add(7*day))
		require.NoError(t, err)
		require.Len(t, load, 2)
		assert.Equal(t, "Ana", load[0].Name)
		assert.Equal(t, 2, load[0].Lifetime)
		assert.Equal(t, 1, load[0].Upcoming)
		assert.Equal(t, "Idle_Bee", load[1].Name)
		assert.Equal(t, 0, load[1].Lifetime)
	})

	t.Run("WeekdayCountsUseLocalTime", func(t *testing.T) {
		since := now.Add(-30 * day)
		utc, err := repo.WeekdayCounts(ctx, since, "UTC")
		require.NoError(t, err)
		assert.Equal(t, map[int]int{1: 1, 5: 1}, utc)

		ny, err := repo.WeekdayCounts(ctx, since, "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, map[int]int{0: 1, 5: 1}, ny)
	})

	t.Run("ClientStats", func(t *testing.T) {
		c, err := repo.ClientStats(ctx, now.Add(-30*day))
		require.NoError(t, err)
		assert.Equal(t, 2, c.TotalClients)
		assert.Equal(t, 1, c.RepeatClients)
		assert.Equal(t, 3, c.NewClientBookings)
		assert.Equal(t, 1, c.NewClientCancellations)
	})

	t.Run("SearchMatchesWildcardsLiterally", func(t *testing.T) {
		found, err := bookingsRepo.Search(ctx, bookings.Filter{Query: "%", Limit: 10})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "100% Clean Ave", found[0].Address)

		ws, err := workersRepo.List(ctx, workers.Filter{Name: "_"})
		require.NoError(t, err)
		require.Len(t, ws, 1)
		assert.Equal(t, "Idle_Bee", ws[0].Name)
	})
}
