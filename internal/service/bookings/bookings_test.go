package bookings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/events"
	"github.com/improveclean/cleaning-site/internal/service"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/bookings"
	"github.com/improveclean/cleaning-site/internal/store/workers"
)

type fakeBookings struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*bookings.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{rows: map[int64]*bookings.Booking{}}
}

func (f *fakeBookings) Create(_ context.Context, b *bookings.Booking) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.rows[b.ID] = &cp
	return b, nil
}

func (f *fakeBookings) GetForUser(_ context.Context, id, userID int64) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok || b.UserID != userID {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) ListByUser(_ context.Context, userID int64) ([]*bookings.Booking, error) {
	var out []*bookings.Booking
	for _, b := range f.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookings) UpdateStatus(_ context.Context, id int64, status store.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return errors.New("no rows")
	}
	b.Status = status
	return nil
}

func (f *fakeBookings) Search(_ context.Context, fl bookings.Filter) ([]*bookings.Booking, error) {
	return nil, nil
}

func (f *fakeBookings) ApplyUpdate(_ context.Context, id int64, u bookings.Update) (*bookings.Booking, error) {
	b, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.ClearWorker {
		b.WorkerID = nil
	} else if u.WorkerID != nil {
		b.WorkerID = u.WorkerID
	}
	if u.WorkerResponse != nil {
		b.WorkerResponse = *u.WorkerResponse
	}
	return b, nil
}

type fakeWorkers map[int64]*workers.Worker

func (f fakeWorkers) Get(_ context.Context, id int64) (*workers.Worker, error) {
	return f[id], nil
}

func (f fakeWorkers) List(_ context.Context, fl workers.Filter) ([]*workers.Worker, error) {
	var out []*workers.Worker
	for _, w := range f {
		if fl.Active != nil && w.IsActive != *fl.Active {
			continue
		}
		if fl.ServiceFocus != "" && string(w.ServiceFocus) != fl.ServiceFocus {
			continue
		}
		if fl.Name != "" && !strings.Contains(strings.ToLower(w.Name), strings.ToLower(fl.Name)) {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

type capturePublisher struct {
	messages [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, _, value []byte) error {
	c.messages = append(c.messages, value)
	return nil
}

var t0 = time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*BookingsService, *fakeBookings, *capturePublisher) {
	t.Helper()
	repo := newFakeBookings()
	ws := fakeWorkers{
		1: {ID: 1, Name: "Zoe", ServiceFocus: store.ServiceDeep, IsActive: true},
		2: {ID: 2, Name: "Ana", ServiceFocus: store.ServiceStandard, IsActive: true},
		3: {ID: 3, Name: "Bea", ServiceFocus: store.ServiceDeep, IsActive: false},
	}
	pub := &capturePublisher{}
	svc := NewBookingsService(zap.NewNop(), repo, ws, pub, time.UTC, 5*time.Hour)
	svc.now = func() time.Time { return t0 }
	return svc, repo, pub
}

func request(at time.Time) CreateRequest {
	return CreateRequest{
		ServiceType:  "standard",
		ScheduledFor: at.Format(time.RFC3339),
		Address:      "1 Main St",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *service.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestCreateRushFlag(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   time.Duration
		rush bool
	}{
		{"TwoHours", 2 * time.Hour, true},
		{"ExactlyFiveHours", 5 * time.Hour, true},
		{"JustPastThreshold", 5*time.Hour + time.Second, false},
		{"TenHours", 10 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := svc.Create(ctx, 7, request(t0.Add(tc.in)))
			require.NoError(t, err)
			assert.Equal(t, tc.rush, res.Booking.RushCleaning)
			assert.Equal(t, store.StatusScheduled, res.Booking.Status)
			assert.Equal(t, store.ResponsePending, res.Booking.WorkerResponse)
			assert.True(t, t0.Equal(res.Booking.CreatedAt))
			assert.Equal(t, int64(7), res.Booking.UserID)
		})
	}
}

func TestCreateRejectsPastAndNow(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	for _, at := range []time.Time{t0.Add(-time.Minute), t0} {
		_, err := svc.Create(ctx, 7, request(at))
		assert.Equal(t, MsgScheduledInPast, fieldErrors(t, err)["scheduled_for"])
	}
	assert.Empty(t, repo.rows)
	assert.Empty(t, pub.messages)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	inactive := int64(3)
	missing := int64(99)

	_, err := svc.Create(ctx, 7, CreateRequest{ServiceType: "laundry", ScheduledFor: "tomorrow", Address: "  "})
	fields := fieldErrors(t, err)
	assert.Equal(t, service.MsgInvalidChoice, fields["service_type"])
	assert.Equal(t, MsgInvalidDatetime, fields["scheduled_for"])
	assert.Equal(t, service.MsgRequired, fields["address"])

	for _, id := range []*int64{&inactive, &missing} {
		req := request(t0.Add(24 * time.Hour))
		req.WorkerID = id
		_, err := svc.Create(ctx, 7, req)
		assert.Equal(t, service.MsgInvalidChoice, fieldErrors(t, err)["worker"])
	}
}

func TestCreateLocalDatetimeAndMessage(t *testing.T) {
	svc, _, pub := newService(t)
	worker := int64(1)

	res, err := svc.Create(context.Background(), 7, CreateRequest{
		ServiceType:  "deep",
		ScheduledFor: "2025-03-04T11:00",
		Address:      "2 Side St",
		WorkerID:     &worker,
	})
	require.NoError(t, err)
	assert.True(t, res.Booking.RushCleaning)
	assert.Equal(t, "Your cleaning has been scheduled with Zoe. Our team will confirm the details shortly. "+
		"Rush service applied automatically based on your requested time.", res.Message)

	require.Len(t, pub.messages, 1)
	env, err := events.Decode(pub.messages[0])
	require.NoError(t, err)
	assert.Equal(t, events.BookingCreated, env.Type)
}

func TestCancel(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	res, err := svc.Create(ctx, 1, request(t0.Add(48*time.Hour)))
	require.NoError(t, err)
	id := res.Booking.ID
	pub.messages = nil

	t.Run("OtherUserGetsNotFound", func(t *testing.T) {
		_, err := svc.Cancel(ctx, id, 2)
		assert.ErrorIs(t, err, service.ErrNotFound)
		assert.Equal(t, store.StatusScheduled, repo.rows[id].Status)
		assert.Empty(t, pub.messages)
	})

	t.Run("UnknownBooking", func(t *testing.T) {
		_, err := svc.Cancel(ctx, 404, 1)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("OwnerCancels", func(t *testing.T) {
		b, err := svc.Cancel(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCancelled, b.Status)
		assert.Equal(t, store.StatusCancelled, repo.rows[id].Status)
		assert.Equal(t, "1 Main St", repo.rows[id].Address)
	})

	t.Run("CancelAgainIsNoop", func(t *testing.T) {
		b, err := svc.Cancel(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCancelled, b.Status)
	})
}

func TestWorkersPicker(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	list, err := svc.Workers(ctx, PickerFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, "Zoe", list[1].Name)

	list, err = svc.Workers(ctx, PickerFilter{Service: "deep"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Zoe", list[0].Name)

	inactive := int64(3)
	list, err = svc.Workers(ctx, PickerFilter{Search: "zo", Selected: &inactive})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bea", list[0].Name, "selected worker is force-included")
	assert.Equal(t, "Zoe", list[1].Name)

	already := int64(1)
	list, err = svc.Workers(ctx, PickerFilter{Selected: &already})
	require.NoError(t, err)
	assert.Len(t, list, 2, "no duplicates")
}

func TestAdminUpdate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	worker := int64(2)
	res, err := svc.Create(ctx, 1, CreateRequest{ServiceType: "office", ScheduledFor: t0.Add(72 * time.Hour).Format(time.RFC3339), Address: "x", WorkerID: &worker})
	require.NoError(t, err)

	bad := "exploded"
	_, err = svc.AdminUpdate(ctx, res.Booking.ID, AdminUpdateRequest{Status: &bad})
	assert.Equal(t, service.MsgInvalidChoice, fieldErrors(t, err)["status"])

	done := "completed"
	accepted := "accepted"
	unassign := int64(0)
	b, err := svc.AdminUpdate(ctx, res.Booking.ID, AdminUpdateRequest{Status: &done, WorkerResponse: &accepted, WorkerID: &unassign})
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, b.Status)
	assert.Equal(t, store.ResponseAccepted, b.WorkerResponse)
	assert.Nil(t, b.WorkerID)

	_, err = svc.AdminUpdate(ctx, 999, AdminUpdateRequest{Status: &done})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestParseScheduledFor(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	got, err := ParseScheduledFor("2025-07-01 08:30", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 6, 30, 0, 0, time.UTC), got.UTC())

	_, err = ParseScheduledFor("01/07/2025", berlin)
	assert.Error(t, err)
}
