package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/events"
	redisx "github.com/improveclean/cleaning-site/internal/redis"
	mailerService "github.com/improveclean/cleaning-site/internal/service/mailer"
	"github.com/improveclean/cleaning-site/internal/store/users"
)

type sent struct {
	kind string
	to   string
	d    mailerService.BookingDetails
}

type fakeMailer struct {
	sent []sent
	fail error
}

func (m *fakeMailer) SendBookingConfirmationEmail(to string, d mailerService.BookingDetails) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sent{"confirmation", to, d})
	return nil
}

func (m *fakeMailer) SendBookingCancellationEmail(to string, d mailerService.BookingDetails) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sent{"cancellation", to, d})
	return nil
}

func (m *fakeMailer) SendApplicationReceivedEmail(to, fullName string) error {
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, sent{kind: "application", to: to, d: mailerService.BookingDetails{Name: fullName}})
	return nil
}

type fakeUsers map[int64]*users.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*users.User, error) { return f[id], nil }

func newNotify(t *testing.T) (*NotifyService, *fakeMailer) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := &fakeMailer{}
	u := fakeUsers{7: {ID: 7, Username: "ana", FirstName: "Ana", LastName: "Lima", Email: "ana@example.com"}}
	return NewNotifyService(zap.NewNop(), u, m, redisx.NewDeliveries(client, time.Hour)), m
}

func bookingEvent(t *testing.T, eventType string, userID int64) []byte {
	t.Helper()
	b, err := events.Encode(eventType, time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), events.BookingPayload{
		BookingID:    11,
		UserID:       userID,
		ServiceType:  "deep",
		ScheduledFor: time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
		Address:      "1 Main St",
		WorkerName:   "Bea",
		Rush:         true,
	})
	require.NoError(t, err)
	return b
}

func TestHandleBookingEvents(t *testing.T) {
	svc, m := newNotify(t)
	ctx := context.Background()

	require.NoError(t, svc.Handle(ctx, bookingEvent(t, events.BookingCreated, 7)))
	require.NoError(t, svc.Handle(ctx, bookingEvent(t, events.BookingCancelled, 7)))

	require.Len(t, m.sent, 2)
	assert.Equal(t, "confirmation", m.sent[0].kind)
	assert.Equal(t, "ana@example.com", m.sent[0].to)
	assert.Equal(t, "Ana Lima", m.sent[0].d.Name)
	assert.Equal(t, "Deep Cleaning", m.sent[0].d.Service)
	assert.True(t, m.sent[0].d.Rush)
	assert.Equal(t, "cancellation", m.sent[1].kind)
}

func TestHandleSkipsRedelivery(t *testing.T) {
	svc, m := newNotify(t)
	ctx := context.Background()
	msg := bookingEvent(t, events.BookingCreated, 7)

	require.NoError(t, svc.Handle(ctx, msg))
	require.NoError(t, svc.Handle(ctx, msg))
	assert.Len(t, m.sent, 1)
}

func TestHandleFailureReleasesClaim(t *testing.T) {
	svc, m := newNotify(t)
	ctx := context.Background()
	msg := bookingEvent(t, events.BookingCreated, 7)

	m.fail = errors.New("smtp down")
	assert.Error(t, svc.Handle(ctx, msg))

	m.fail = nil
	require.NoError(t, svc.Handle(ctx, msg))
	assert.Len(t, m.sent, 1)
}

func TestHandleApplicationAndUnknown(t *testing.T) {
	svc, m := newNotify(t)
	ctx := context.Background()

	msg, err := events.Encode(events.ApplicationReceived, time.Now(), events.ApplicationPayload{ApplicationID: 3, FullName: "Cy", Email: "cy@example.com"})
	require.NoError(t, err)
	require.NoError(t, svc.Handle(ctx, msg))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "cy@example.com", m.sent[0].to)

	unknown, err := events.Encode("invoice.paid", time.Now(), map[string]int{"id": 1})
	require.NoError(t, err)
	assert.NoError(t, svc.Handle(ctx, unknown))

	assert.Error(t, svc.Handle(ctx, []byte("{not json")))
	assert.Error(t, svc.Handle(ctx, bookingEvent(t, events.BookingCreated, 404)), "missing user")
	assert.Len(t, m.sent, 1)
}
