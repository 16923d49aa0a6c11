package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/service"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
	"github.com/improveclean/cleaning-site/internal/store/workers"
)

const (
	upcomingLimit = 20
	historyLimit  = 10
)

type WorkerStore interface {
	Create(ctx context.Context, w *workers.Worker) (*workers.Worker, error)
	Get(ctx context.Context, id int64) (*workers.Worker, error)
	List(ctx context.Context, f workers.Filter) ([]*workers.Worker, error)
	Update(ctx context.Context, w *workers.Worker) error
	Delete(ctx context.Context, id int64) error
}

type ScheduleStore interface {
	ListForWorker(ctx context.Context, q bookings.ScheduleQuery) ([]*bookings.Booking, error)
}

type WorkersService struct {
	log      *zap.Logger
	repo     WorkerStore
	bookings ScheduleStore
	loc      *time.Location
	now      func() time.Time
}

func NewWorkersService(log *zap.Logger, repo WorkerStore, bookings ScheduleStore, loc *time.Location) *WorkersService {
	if loc == nil {
		loc = time.UTC
	}
	return &WorkersService{log: log, repo: repo, bookings: bookings, loc: loc, now: time.Now}
}

// WorkerInput is the admin create/update form.
type WorkerInput struct {
	Name            string `json:"name" binding:"required,max=120"`
	Headline        string `json:"headline" binding:"max=150"`
	ServiceFocus    string `json:"service_focus" binding:"required"`
	ExperienceYears *int   `json:"experience_years"`
	PhotoURL        string `json:"photo_url" binding:"omitempty,url,max=200"`
	Bio             string `json:"bio"`
	ContactEmail    string `json:"contact_email" binding:"max=254"`
	PhoneNumber     string `json:"phone_number" binding:"max=30"`
	IsActive        *bool  `json:"is_active"`
}

func (in WorkerInput) toWorker() (*workers.Worker, error) {
	verr := &service.ValidationError{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", service.MsgRequired)
	}
	headline := strings.TrimSpace(in.Headline)
	for _, f := range []struct {
		field, value string
		max          int
	}{
		{"name", name, 120},
		{"headline", headline, 150},
		{"photo_url", in.PhotoURL, 200},
		{"contact_email", in.ContactEmail, 254},
		{"phone_number", in.PhoneNumber, 30},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			verr.Add(f.field, fmt.Sprintf("Ensure this value has at most %d characters.", f.max))
		}
	}
	focus := store.ServiceType(in.ServiceFocus)
	if !focus.Valid() {
		verr.Add("service_focus", service.MsgInvalidChoice)
	}
	years := 1
	if in.ExperienceYears != nil {
		years = *in.ExperienceYears
		if years < 0 {
			verr.Add("experience_years", "Ensure this value is greater than or equal to 0.")
		}
	}
	if in.ContactEmail != "" && verr.Fields["contact_email"] == "" {
		if !service.ValidEmail(in.ContactEmail) {
			verr.Add("contact_email", service.MsgInvalidEmail)
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &workers.Worker{
		Name:            name,
		Headline:        headline,
		ServiceFocus:    focus,
		ExperienceYears: years,
		PhotoURL:        in.PhotoURL,
		Bio:             in.Bio,
		ContactEmail:    in.ContactEmail,
		PhoneNumber:     in.PhoneNumber,
		IsActive:        active,
	}, nil
}

func (s *WorkersService) Create(ctx context.Context, in WorkerInput) (*workers.Worker, error) {
	w, err := in.toWorker()
	if err != nil {
		return nil, err
	}
	w, err = s.repo.Create(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}
	s.log.Info("worker created", zap.Int64("worker_id", w.ID), zap.String("name", w.Name))
	return w, nil
}

func (s *WorkersService) Get(ctx context.Context, id int64) (*workers.Worker, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, service.ErrNotFound
	}
	return w, nil
}

func (s *WorkersService) List(ctx context.Context, f workers.Filter) ([]*workers.Worker, error) {
	return s.repo.List(ctx, f)
}

func (s *WorkersService) Update(ctx context.Context, id int64, in WorkerInput) (*workers.Worker, error) {
	w, err := in.toWorker()
	if err != nil {
		return nil, err
	}
	w.ID = id
	if err := s.repo.Update(ctx, w); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update worker: %w", err)
	}
	return w, nil
}

func (s *WorkersService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrNotFound
		}
		return fmt.Errorf("failed to delete worker: %w", err)
	}
	s.log.Info("worker deleted", zap.Int64("worker_id", id))
	return nil
}

type CalendarDay struct {
	Date     string              `json:"date"`
	Weekday  string              `json:"weekday"`
	Bookings []*bookings.Booking `json:"bookings"`
}

type Schedule struct {
	Worker    *workers.Worker     `json:"worker"`
	Upcoming  []*bookings.Booking `json:"worker_upcoming_schedule"`
	Recent    []*bookings.Booking `json:"worker_recent_history"`
	WeekDays  []CalendarDay       `json:"worker_week_days"`
	WeekTotal int                 `json:"worker_week_total"`
}

// WeekStart returns local midnight of the Monday on or before t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

func (s *WorkersService) Schedule(ctx context.Context, id int64) (*Schedule, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	upcoming, err := s.bookings.ListForWorker(ctx, bookings.ScheduleQuery{WorkerID: id, From: &now, Limit: upcomingLimit})
	if err != nil {
		return nil, fmt.Errorf("upcoming schedule: %w", err)
	}
	recent, err := s.bookings.ListForWorker(ctx, bookings.ScheduleQuery{WorkerID: id, Before: &now, Desc: true, Limit: historyLimit})
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}

	start := WeekStart(now, s.loc)
	end := start.AddDate(0, 0, 7)
	week, err := s.bookings.ListForWorker(ctx, bookings.ScheduleQuery{WorkerID: id, From: &start, Before: &end})
	if err != nil {
		return nil, fmt.Errorf("weekly calendar: %w", err)
	}

	days, total := Calendar(start, week, s.loc)
	if upcoming == nil {
		upcoming = []*bookings.Booking{}
	}
	if recent == nil {
		recent = []*bookings.Booking{}
	}
	return &Schedule{Worker: w, Upcoming: upcoming, Recent: recent, WeekDays: days, WeekTotal: total}, nil
}

// Calendar buckets bookings into the seven local dates starting at start.
// Bookings outside those dates are ignored.
func Calendar(start time.Time, week []*bookings.Booking, loc *time.Location) ([]CalendarDay, int) {
	days := make([]CalendarDay, 7)
	index := map[string]int{}
	for i := range days {
		d := start.AddDate(0, 0, i)
		key := d.Format(time.DateOnly)
		days[i] = CalendarDay{Date: key, Weekday: d.Weekday().String(), Bookings: []*bookings.Booking{}}
		index[key] = i
	}

	total := 0
	for _, b := range week {
		i, ok := index[b.ScheduledFor.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Bookings = append(days[i].Bookings, b)
		total++
	}
	return days, total
}
