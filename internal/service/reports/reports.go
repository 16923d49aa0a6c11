package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/metrics"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
	"github.com/improveclean/cleaning-site/internal/store/pageviews"
	storeReports "github.com/improveclean/cleaning-site/internal/store/reports"
)

const (
	upcomingLimit    = 8
	rankingLimit     = 6
	trendWeeks       = 12
	maxUserAgentLen  = 255
	maxSessionKeyLen = 40
	maxPathLen       = 255
)

var weekdayLabels = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// AggregateStore is the reporting side of the database.
type AggregateStore interface {
	BookingTotals(ctx context.Context, w storeReports.Window) (storeReports.Totals, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
	ServiceCounts(ctx context.Context) (map[string]int, error)
	WorkerLoad(ctx context.Context, from, to time.Time) ([]storeReports.WorkerLoad, error)
	ClientStats(ctx context.Context, since time.Time) (storeReports.ClientStats, error)
	WeekdayCounts(ctx context.Context, since time.Time, tz string) (map[int]int, error)
	HourlyCounts(ctx context.Context, since time.Time, tz string) (map[int]int, error)
	WeeklyRush(ctx context.Context, since time.Time, tz string) ([]storeReports.RushRow, error)
}

type BookingLister interface {
	ListUpcoming(ctx context.Context, from, to time.Time, limit int) ([]*bookings.Booking, error)
	ListAssignedBetween(ctx context.Context, from, to time.Time) ([]*bookings.Booking, error)
}

type PageViewStore interface {
	Record(ctx context.Context, pv *pageviews.PageView) error
	Stats(ctx context.Context, path string, since30, since7 time.Time) (pageviews.Stats, error)
}

type ReportsService struct {
	log       *zap.Logger
	reports   AggregateStore
	bookings  BookingLister
	pageViews PageViewStore
	loc       *time.Location
	now       func() time.Time
}

func NewReportsService(log *zap.Logger, reports AggregateStore, bookings BookingLister, pageViews PageViewStore, loc *time.Location) *ReportsService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsService{log: log, reports: reports, bookings: bookings, pageViews: pageViews, loc: loc, now: time.Now}
}

// Visit describes the request that opened the dashboard.
type Visit struct {
	UserID     *int64
	SessionKey string
	UserAgent  string
}

type StatusRow struct {
	Code    string  `json:"code"`
	Label   string  `json:"label"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type ServiceRow struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Total int    `json:"total"`
}

type WorkerStat struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	ServiceFocus  store.ServiceType `json:"service_focus"`
	BookingTotal  int               `json:"booking_total"`
	UpcomingTotal int               `json:"upcoming_total"`
}

type WorkerSchedule struct {
	WorkerID   int64               `json:"worker_id"`
	WorkerName string              `json:"worker_name"`
	Bookings   []*bookings.Booking `json:"bookings"`
}

type Bucket struct {
	Label string `json:"label"`
	Total int    `json:"total"`
}

type TrendRow struct {
	Week  time.Time `json:"week"`
	Total int       `json:"total"`
	Rush  int       `json:"rush"`
	Ratio float64   `json:"ratio"`
}

type Dashboard struct {
	GeneratedAt time.Time `json:"generated_at"`

	TotalBookings  int          `json:"total_bookings"`
	StatusSummary  []StatusRow  `json:"status_summary"`
	ServiceSummary []ServiceRow `json:"service_summary"`
	RushTotal      int          `json:"rush_total"`
	CreatedLast7   int          `json:"created_last_7"`
	CreatedLast30  int          `json:"created_last_30"`

	RecentCompletionRate   float64 `json:"recent_completion_rate"`
	RecentCancellationRate float64 `json:"recent_cancellation_rate"`
	RecentCompleted        int     `json:"recent_completed"`
	RecentCancelled        int     `json:"recent_cancelled"`

	Upcoming           []*bookings.Booking `json:"upcoming"`
	UnassignedTotal    int                 `json:"unassigned_total"`
	UpcomingUnassigned int                 `json:"upcoming_unassigned"`
	AvgLeadDays        float64             `json:"avg_lead_days"`

	WorkerRankings    []WorkerStat     `json:"worker_rankings"`
	WorkerUtilization []WorkerStat     `json:"worker_utilization"`
	IdleWorkers       []WorkerStat     `json:"idle_workers"`
	WorkerSchedules   []WorkerSchedule `json:"worker_schedules"`

	NewUsers                  int     `json:"new_users"`
	TotalClients              int     `json:"total_clients"`
	RepeatClients             int     `json:"repeat_clients"`
	RepeatRate                float64 `json:"repeat_rate"`
	NewClientCancellations    int     `json:"new_client_cancellations"`
	NewClientCancellationRate float64 `json:"new_client_cancellation_rate"`

	WeekdayMix  []Bucket   `json:"weekday_mix"`
	WeekdayPeak int        `json:"weekday_peak"`
	HourlyMix   []Bucket   `json:"hourly_mix"`
	HourlyPeak  int        `json:"hourly_peak"`
	RushTrend   []TrendRow `json:"rush_trend"`

	PageViewTotal    int                 `json:"page_view_total"`
	PageView30       int                 `json:"page_view_30"`
	PageView7        int                 `json:"page_view_7"`
	UniqueAdmins30   int                 `json:"unique_admins_30"`
	UniqueSessions30 int                 `json:"unique_sessions_30"`
	LastPageView     *pageviews.PageView `json:"last_page_view"`
}

// Percent returns part/whole as a percentage rounded to one decimal, or 0
// when whole is zero. Ties round to even, so 6.25 becomes 6.2.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Dashboard records the visit (when given) and builds the admin overview for path.
func (s *ReportsService) Dashboard(ctx context.Context, path string, visit *Visit) (*Dashboard, error) {
	start := time.Now()
	defer func() { metrics.DashboardBuildDuration.Observe(time.Since(start).Seconds()) }()

	path = truncate(path, maxPathLen)
	if visit != nil {
		pv := &pageviews.PageView{
			UserID:     visit.UserID,
			SessionKey: truncate(visit.SessionKey, maxSessionKeyLen),
			UserAgent:  truncate(visit.UserAgent, maxUserAgentLen),
			Path:       path,
		}
		if err := s.pageViews.Record(ctx, pv); err != nil {
			return nil, fmt.Errorf("record page view: %w", err)
		}
		metrics.AdminPageViewsTotal.Inc()
	}

	now := s.now()
	w := storeReports.Window{
		Now:      now,
		Last7:    now.AddDate(0, 0, -7),
		Last30:   now.AddDate(0, 0, -30),
		NextWeek: now.AddDate(0, 0, 7),
	}
	tz := s.loc.String()
	d := &Dashboard{GeneratedAt: now}

	totals, err := s.reports.BookingTotals(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("booking totals: %w", err)
	}
	d.TotalBookings = totals.Total
	d.CreatedLast7 = totals.CreatedLast7
	d.CreatedLast30 = totals.CreatedLast30
	d.RushTotal = totals.RushTotal
	d.RecentCompleted = totals.RecentCompleted
	d.RecentCancelled = totals.RecentCancelled
	d.RecentCompletionRate = Percent(totals.RecentCompleted, totals.RecentTotal)
	d.RecentCancellationRate = Percent(totals.RecentCancelled, totals.RecentTotal)
	d.UnassignedTotal = totals.UnassignedTotal
	d.UpcomingUnassigned = totals.UpcomingUnassigned
	d.AvgLeadDays = round1(totals.AvgLeadSeconds / 86400)

	statusCounts, err := s.reports.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	d.StatusSummary = StatusSummary(statusCounts, totals.Total)

	serviceCounts, err := s.reports.ServiceCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service counts: %w", err)
	}
	d.ServiceSummary = ServiceSummary(serviceCounts)

	d.Upcoming, err = s.bookings.ListUpcoming(ctx, w.Now, w.NextWeek, upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("upcoming bookings: %w", err)
	}

	load, err := s.reports.WorkerLoad(ctx, w.Now, w.NextWeek)
	if err != nil {
		return nil, fmt.Errorf("worker load: %w", err)
	}
	d.WorkerUtilization, d.IdleWorkers, d.WorkerRankings = WorkerStats(load)

	assigned, err := s.bookings.ListAssignedBetween(ctx, w.Now, w.NextWeek)
	if err != nil {
		return nil, fmt.Errorf("assigned bookings: %w", err)
	}
	d.WorkerSchedules = Schedules(d.WorkerUtilization, assigned)

	clients, err := s.reports.ClientStats(ctx, w.Last30)
	if err != nil {
		return nil, fmt.Errorf("client stats: %w", err)
	}
	d.NewUsers = clients.NewUsers
	d.TotalClients = clients.TotalClients
	d.RepeatClients = clients.RepeatClients
	d.RepeatRate = Percent(clients.RepeatClients, clients.TotalClients)
	d.NewClientCancellations = clients.NewClientCancellations
	d.NewClientCancellationRate = Percent(clients.NewClientCancellations, clients.NewClientBookings)

	weekdays, err := s.reports.WeekdayCounts(ctx, w.Last30, tz)
	if err != nil {
		return nil, fmt.Errorf("weekday counts: %w", err)
	}
	d.WeekdayMix, d.WeekdayPeak = WeekdayMix(weekdays)

	hours, err := s.reports.HourlyCounts(ctx, w.Last30, tz)
	if err != nil {
		return nil, fmt.Errorf("hourly counts: %w", err)
	}
	d.HourlyMix, d.HourlyPeak = HourlyMix(hours)

	rush, err := s.reports.WeeklyRush(ctx, now.AddDate(0, 0, -7*trendWeeks), tz)
	if err != nil {
		return nil, fmt.Errorf("rush trend: %w", err)
	}
	d.RushTrend = RushTrend(rush, s.loc)

	views, err := s.pageViews.Stats(ctx, path, w.Last30, w.Last7)
	if err != nil {
		return nil, fmt.Errorf("page view stats: %w", err)
	}
	d.PageViewTotal = views.Total
	d.PageView30 = views.Last30
	d.PageView7 = views.Last7
	d.UniqueAdmins30 = views.UniqueAdmins30
	d.UniqueSessions30 = views.UniqueSessions
	d.LastPageView = views.Last

	if d.Upcoming == nil {
		d.Upcoming = []*bookings.Booking{}
	}
	return d, nil
}

// StatusSummary lists every status in display order, zeros included.
func StatusSummary(counts map[string]int, total int) []StatusRow {
	out := make([]StatusRow, 0, len(store.StatusChoices))
	for _, c := range store.StatusChoices {
		n := counts[c.Code]
		out = append(out, StatusRow{Code: c.Code, Label: c.Label, Total: n, Percent: Percent(n, total)})
	}
	return out
}

func ServiceSummary(counts map[string]int) []ServiceRow {
	out := make([]ServiceRow, 0, len(store.ServiceChoices))
	for _, c := range store.ServiceChoices {
		out = append(out, ServiceRow{Code: c.Code, Label: c.Label, Total: counts[c.Code]})
	}
	return out
}

// WorkerStats splits active worker load into utilization (by name), idle
// workers and the top rankings.
func WorkerStats(load []storeReports.WorkerLoad) (utilization, idle, rankings []WorkerStat) {
	utilization = make([]WorkerStat, 0, len(load))
	idle = []WorkerStat{}
	for _, l := range load {
		st := WorkerStat{
			ID:            l.WorkerID,
			Name:          l.Name,
			ServiceFocus:  l.ServiceFocus,
			BookingTotal:  l.Lifetime,
			UpcomingTotal: l.Upcoming,
		}
		utilization = append(utilization, st)
		if st.UpcomingTotal == 0 {
			idle = append(idle, st)
		}
	}
	sort.SliceStable(utilization, func(i, j int) bool { return utilization[i].Name < utilization[j].Name })

	rankings = append([]WorkerStat(nil), utilization...)
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].BookingTotal != rankings[j].BookingTotal {
			return rankings[i].BookingTotal > rankings[j].BookingTotal
		}
		return rankings[i].Name < rankings[j].Name
	})
	if len(rankings) > rankingLimit {
		rankings = rankings[:rankingLimit]
	}
	return utilization, idle, rankings
}

// Schedules groups assigned bookings under their worker. Every active worker
// gets an entry; workers outside that list get one appended when they still
// have bookings.
func Schedules(active []WorkerStat, assigned []*bookings.Booking) []WorkerSchedule {
	out := make([]WorkerSchedule, 0, len(active))
	index := map[int64]int{}
	for _, w := range active {
		index[w.ID] = len(out)
		out = append(out, WorkerSchedule{WorkerID: w.ID, WorkerName: w.Name, Bookings: []*bookings.Booking{}})
	}
	for _, b := range assigned {
		if b.WorkerID == nil {
			continue
		}
		i, ok := index[*b.WorkerID]
		if !ok {
			name := ""
			if b.WorkerName != nil {
				name = *b.WorkerName
			}
			i = len(out)
			index[*b.WorkerID] = i
			out = append(out, WorkerSchedule{WorkerID: *b.WorkerID, WorkerName: name, Bookings: []*bookings.Booking{}})
		}
		out[i].Bookings = append(out[i].Bookings, b)
	}
	return out
}

// WeekdayMix orders counts keyed 0=Sunday..6=Saturday and returns the peak.
func WeekdayMix(counts map[int]int) ([]Bucket, int) {
	out := make([]Bucket, 0, 7)
	peak := 0
	for i, label := range weekdayLabels {
		n := counts[i]
		out = append(out, Bucket{Label: label, Total: n})
		peak = max(peak, n)
	}
	return out, peak
}

func HourlyMix(counts map[int]int) ([]Bucket, int) {
	out := make([]Bucket, 0, 24)
	peak := 0
	for h := 0; h < 24; h++ {
		n := counts[h]
		out = append(out, Bucket{Label: fmt.Sprintf("%02d:00", h), Total: n})
		peak = max(peak, n)
	}
	return out, peak
}

// RushTrend converts weekly rows to ratios. Week values arrive as local wall
// clock dates and are pinned to loc.
func RushTrend(rows []storeReports.RushRow, loc *time.Location) []TrendRow {
	out := make([]TrendRow, 0, len(rows))
	for _, r := range rows {
		week := time.Date(r.Week.Year(), r.Week.Month(), r.Week.Day(), 0, 0, 0, 0, loc)
		out = append(out, TrendRow{Week: week, Total: r.Total, Rush: r.Rush, Ratio: Percent(r.Rush, r.Total)})
	}
	return out
}
