package reports

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/store"
)

// Window holds the reference instants of one dashboard computation.
type Window struct {
	Now      time.Time
	Last7    time.Time
	Last30   time.Time
	NextWeek time.Time
}

// Totals are the scalar booking counts of the dashboard.
type Totals struct {
	Total              int
	CreatedLast7       int
	CreatedLast30      int
	RecentTotal        int
	RecentCompleted    int
	RecentCancelled    int
	RushTotal          int
	UnassignedTotal    int
	UpcomingUnassigned int
	AvgLeadSeconds     float64
}

type WorkerLoad struct {
	WorkerID     int64
	Name         string
	ServiceFocus store.ServiceType
	Lifetime     int
	Upcoming     int
}

type ClientStats struct {
	NewUsers               int
	TotalClients           int
	RepeatClients          int
	NewClientCancellations int
	NewClientBookings      int
}

// RushRow is one calendar week of bookings keyed by the local Monday.
type RushRow struct {
	Week  time.Time
	Total int
	Rush  int
}

type ReportsRepository struct {
	db  *store.DB
	log *zap.Logger
}

func NewReportsRepository(db *store.DB, log *zap.Logger) *ReportsRepository {
	return &ReportsRepository{db: db, log: log}
}

func (r *ReportsRepository) BookingTotals(ctx context.Context, w Window) (Totals, error) {
	var t Totals
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= $1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scheduled_for >= $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scheduled_for >= $2 AND status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN scheduled_for >= $2 AND status = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rush_cleaning THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN worker_id IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN worker_id IS NULL AND scheduled_for BETWEEN $3 AND $4 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (scheduled_for - created_at))), 0)::float8
		FROM bookings`, w.Last7, w.Last30, w.Now, w.NextWeek).Scan(
		&t.Total, &t.CreatedLast7, &t.CreatedLast30,
		&t.RecentTotal, &t.RecentCompleted, &t.RecentCancelled,
		&t.RushTotal, &t.UnassignedTotal, &t.UpcomingUnassigned, &t.AvgLeadSeconds,
	)
	return t, err
}

func (r *ReportsRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
}

func (r *ReportsRepository) ServiceCounts(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT service_type, COUNT(*) FROM bookings GROUP BY service_type`)
}

func (r *ReportsRepository) countBy(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var total int
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		out[key] = total
	}
	return out, rows.Err()
}

// WorkerLoad lists active workers with lifetime bookings and bookings in [from, to].
func (r *ReportsRepository) WorkerLoad(ctx context.Context, from, to time.Time) ([]WorkerLoad, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT w.id, w.name, w.service_focus,
		       COUNT(b.id),
		       COUNT(b.id) FILTER (WHERE b.scheduled_for BETWEEN $1 AND $2)
		FROM workers w
		LEFT JOIN bookings b ON b.worker_id = w.id
		WHERE w.is_active
		GROUP BY w.id, w.name, w.service_focus
		ORDER BY w.name, w.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorkerLoad
	for rows.Next() {
		var l WorkerLoad
		if err := rows.Scan(&l.WorkerID, &l.Name, &l.ServiceFocus, &l.Lifetime, &l.Upcoming); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ReportsRepository) ClientStats(ctx context.Context, since time.Time) (ClientStats, error) {
	var c ClientStats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users WHERE date_joined >= $1),
			(SELECT COUNT(DISTINCT user_id) FROM bookings),
			(SELECT COUNT(*) FROM (SELECT user_id FROM bookings GROUP BY user_id HAVING COUNT(*) > 1) repeaters),
			(SELECT COUNT(*) FROM bookings b JOIN users u ON u.id = b.user_id
			  WHERE b.status = 'cancelled' AND u.date_joined >= $1),
			(SELECT COUNT(*) FROM bookings b JOIN users u ON u.id = b.user_id
			  WHERE u.date_joined >= $1)`, since).Scan(
		&c.NewUsers, &c.TotalClients, &c.RepeatClients, &c.NewClientCancellations, &c.NewClientBookings,
	)
	return c, err
}

// WeekdayCounts keys bookings scheduled since `since` by local day of week, 0 = Sunday.
func (r *ReportsRepository) WeekdayCounts(ctx context.Context, since time.Time, tz string) (map[int]int, error) {
	return r.countByInt(ctx, `
		SELECT EXTRACT(DOW FROM scheduled_for AT TIME ZONE $2)::int, COUNT(*)
		FROM bookings
		WHERE scheduled_for >= $1
		GROUP BY 1`, since, tz)
}

// HourlyCounts keys bookings scheduled since `since` by local hour.
func (r *ReportsRepository) HourlyCounts(ctx context.Context, since time.Time, tz string) (map[int]int, error) {
	return r.countByInt(ctx, `
		SELECT EXTRACT(HOUR FROM scheduled_for AT TIME ZONE $2)::int, COUNT(*)
		FROM bookings
		WHERE scheduled_for >= $1
		GROUP BY 1`, since, tz)
}

func (r *ReportsRepository) countByInt(ctx context.Context, query string, args ...any) (map[int]int, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var key, total int
		if err := rows.Scan(&key, &total); err != nil {
			return nil, err
		}
		out[key] = total
	}
	return out, rows.Err()
}

// WeeklyRush groups bookings created since `since` by local ISO week.
func (r *ReportsRepository) WeeklyRush(ctx context.Context, since time.Time, tz string) ([]RushRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT date_trunc('week', created_at AT TIME ZONE $2) AS week,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE rush_cleaning)
		FROM bookings
		WHERE created_at >= $1
		GROUP BY week
		ORDER BY week`, since, tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RushRow
	for rows.Next() {
		var row RushRow
		if err := rows.Scan(&row.Week, &row.Total, &row.Rush); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
