package bookings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/events"
	"github.com/improveclean/cleaning-site/internal/metrics"
	"github.com/improveclean/cleaning-site/internal/service"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
	"github.com/improveclean/cleaning-site/internal/store/workers"
)

const (
	MsgScheduledInPast = "Bookings must be scheduled in the future."
	MsgInvalidDatetime = "Enter a valid date/time."
	MsgCancelled       = "The booking has been cancelled."
)

var dateTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// BookingStore is the part of bookings.BookingsRepository the service needs.
type BookingStore interface {
	Create(ctx context.Context, b *bookings.Booking) (*bookings.Booking, error)
	GetForUser(ctx context.Context, id, userID int64) (*bookings.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]*bookings.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status store.BookingStatus) error
	Search(ctx context.Context, f bookings.Filter) ([]*bookings.Booking, error)
	ApplyUpdate(ctx context.Context, id int64, u bookings.Update) (*bookings.Booking, error)
}

type WorkerStore interface {
	Get(ctx context.Context, id int64) (*workers.Worker, error)
	List(ctx context.Context, f workers.Filter) ([]*workers.Worker, error)
}

type BookingsService struct {
	log           *zap.Logger
	repo          BookingStore
	workers       WorkerStore
	prod          service.Publisher
	loc           *time.Location
	rushThreshold time.Duration
	now           func() time.Time
}

func NewBookingsService(log *zap.Logger, repo BookingStore, workers WorkerStore, prod service.Publisher, loc *time.Location, rushThreshold time.Duration) *BookingsService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingsService{
		log:           log,
		repo:          repo,
		workers:       workers,
		prod:          prod,
		loc:           loc,
		rushThreshold: rushThreshold,
		now:           time.Now,
	}
}

// CreateRequest is the booking form. Worker is optional; 0 means none.
type CreateRequest struct {
	ServiceType  string `json:"service_type" form:"service_type" binding:"required"`
	ScheduledFor string `json:"scheduled_for" form:"scheduled_for" binding:"required"`
	Address      string `json:"address" form:"address" binding:"required,max=255"`
	WorkerID     *int64 `json:"worker" form:"worker"`
	Notes        string `json:"notes" form:"notes"`
}

type CreateResult struct {
	Booking *bookings.Booking `json:"booking"`
	Message string            `json:"message"`
}

// IsRush reports whether a booking scheduled at `scheduled` and submitted at
// `submitted` falls inside the rush window.
func IsRush(submitted, scheduled time.Time, threshold time.Duration) bool {
	return !scheduled.After(submitted.Add(threshold))
}

// ParseScheduledFor accepts RFC 3339 or a local "YYYY-MM-DDTHH:MM" value.
func ParseScheduledFor(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", raw)
}

func (s *BookingsService) Create(ctx context.Context, userID int64, req CreateRequest) (*CreateResult, error) {
	now := s.now()
	verr := &service.ValidationError{}

	serviceType := store.ServiceType(req.ServiceType)
	if !serviceType.Valid() {
		verr.Add("service_type", service.MsgInvalidChoice)
	}

	scheduledFor, err := ParseScheduledFor(req.ScheduledFor, s.loc)
	if err != nil {
		verr.Add("scheduled_for", MsgInvalidDatetime)
	} else if !scheduledFor.After(now) {
		verr.Add("scheduled_for", MsgScheduledInPast)
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		verr.Add("address", service.MsgRequired)
	}

	var worker *workers.Worker
	if req.WorkerID != nil && *req.WorkerID != 0 {
		worker, err = s.workers.Get(ctx, *req.WorkerID)
		if err != nil {
			return nil, err
		}
		if worker == nil || !worker.IsActive {
			verr.Add("worker", service.MsgInvalidChoice)
		}
	}

	if err := verr.OrNil(); err != nil {
		metrics.BookingRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	b := &bookings.Booking{
		UserID:         userID,
		ServiceType:    serviceType,
		ScheduledFor:   scheduledFor,
		Address:        address,
		Notes:          req.Notes,
		RushCleaning:   IsRush(now, scheduledFor, s.rushThreshold),
		Status:         store.StatusScheduled,
		WorkerResponse: store.ResponsePending,
		CreatedAt:      now,
	}
	if worker != nil {
		b.WorkerID = &worker.ID
		b.WorkerName = &worker.Name
	}

	b, err = s.repo.Create(ctx, b)
	if err != nil {
		metrics.BookingRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	metrics.BookingRequestsTotal.WithLabelValues("created").Inc()
	if b.RushCleaning {
		metrics.RushBookingsTotal.Inc()
	}

	s.publish(ctx, events.BookingCreated, b)

	return &CreateResult{Booking: b, Message: createdMessage(b)}, nil
}

func createdMessage(b *bookings.Booking) string {
	msg := "Your cleaning has been scheduled"
	if b.WorkerName != nil {
		msg += " with " + *b.WorkerName
	}
	msg += ". Our team will confirm the details shortly."
	if b.RushCleaning {
		msg += " Rush service applied automatically based on your requested time."
	}
	return msg
}

// Cancel marks the user's booking cancelled. Bookings owned by someone else are
// reported as ErrNotFound and left untouched.
func (s *BookingsService) Cancel(ctx context.Context, bookingID, userID int64) (*bookings.Booking, error) {
	b, err := s.repo.GetForUser(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, service.ErrNotFound
	}

	if err := s.repo.UpdateStatus(ctx, b.ID, store.StatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	b.Status = store.StatusCancelled
	metrics.BookingRequestsTotal.WithLabelValues("cancelled").Inc()

	s.publish(ctx, events.BookingCancelled, b)
	return b, nil
}

func (s *BookingsService) publish(ctx context.Context, eventType string, b *bookings.Booking) {
	if s.prod == nil {
		return
	}
	payload := events.BookingPayload{
		BookingID:    b.ID,
		UserID:       b.UserID,
		ServiceType:  string(b.ServiceType),
		ScheduledFor: b.ScheduledFor,
		Address:      b.Address,
		Rush:         b.RushCleaning,
	}
	if b.WorkerName != nil {
		payload.WorkerName = *b.WorkerName
	}
	by, err := events.Encode(eventType, s.now(), payload)
	if err != nil {
		s.log.Error("event encode error", zap.Error(err))
		return
	}
	if err := s.prod.Publish(ctx, []byte(strconv.FormatInt(b.ID, 10)), by); err != nil {
		s.log.Error("kafka publish error", zap.Error(err), zap.String("type", eventType), zap.Int64("booking_id", b.ID))
	}
}

// PickerFilter narrows the worker list shown next to the booking form.
type PickerFilter struct {
	Service  string
	Search   string
	Selected *int64
}

// Workers lists active workers matching the filter, always including the
// selected worker when it exists.
func (s *BookingsService) Workers(ctx context.Context, f PickerFilter) ([]*workers.Worker, error) {
	active := true
	filter := workers.Filter{Active: &active, Name: strings.TrimSpace(f.Search)}
	if store.ServiceType(f.Service).Valid() {
		filter.ServiceFocus = f.Service
	}
	list, err := s.workers.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if f.Selected != nil {
		found := false
		for _, w := range list {
			if w.ID == *f.Selected {
				found = true
				break
			}
		}
		if !found {
			w, err := s.workers.Get(ctx, *f.Selected)
			if err != nil {
				return nil, err
			}
			if w != nil {
				list = append(list, w)
			}
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

type Dashboard struct {
	Bookings           []*bookings.Booking `json:"bookings"`
	Workers            []*workers.Worker   `json:"workers"`
	TeamService        string              `json:"team_service"`
	TeamSearch         string              `json:"team_search"`
	ServiceChoices     []store.Choice      `json:"service_choices"`
	SelectedWorkerID   *int64              `json:"selected_worker_id"`
	RushThresholdHours float64             `json:"rush_threshold_hours"`
}

func (s *BookingsService) Dashboard(ctx context.Context, userID int64, f PickerFilter) (*Dashboard, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ws, err := s.Workers(ctx, f)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*bookings.Booking{}
	}
	if ws == nil {
		ws = []*workers.Worker{}
	}
	return &Dashboard{
		Bookings:           list,
		Workers:            ws,
		TeamService:        f.Service,
		TeamSearch:         f.Search,
		ServiceChoices:     store.ServiceChoices,
		SelectedWorkerID:   f.Selected,
		RushThresholdHours: s.rushThreshold.Hours(),
	}, nil
}

// Search backs the admin booking list.
func (s *BookingsService) Search(ctx context.Context, f bookings.Filter) ([]*bookings.Booking, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.Search(ctx, f)
}

// AdminUpdateRequest carries the admin edits. A worker of 0 unassigns.
type AdminUpdateRequest struct {
	Status         *string `json:"status"`
	WorkerID       *int64  `json:"worker"`
	WorkerResponse *string `json:"worker_response"`
}

func (s *BookingsService) AdminUpdate(ctx context.Context, id int64, req AdminUpdateRequest) (*bookings.Booking, error) {
	verr := &service.ValidationError{}
	var u bookings.Update

	if req.Status != nil {
		st := store.BookingStatus(*req.Status)
		if !st.Valid() {
			verr.Add("status", service.MsgInvalidChoice)
		}
		u.Status = &st
	}
	if req.WorkerResponse != nil {
		wr := store.WorkerResponse(*req.WorkerResponse)
		if !wr.Valid() {
			verr.Add("worker_response", service.MsgInvalidChoice)
		}
		u.WorkerResponse = &wr
	}
	if req.WorkerID != nil {
		if *req.WorkerID == 0 {
			u.ClearWorker = true
		} else {
			w, err := s.workers.Get(ctx, *req.WorkerID)
			if err != nil {
				return nil, err
			}
			if w == nil {
				verr.Add("worker", service.MsgInvalidChoice)
			}
			u.WorkerID = req.WorkerID
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	b, err := s.repo.ApplyUpdate(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, service.ErrNotFound
	}
	s.log.Info("booking updated by admin", zap.Int64("booking_id", id))
	return b, nil
}
