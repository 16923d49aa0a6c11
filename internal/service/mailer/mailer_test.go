package mailer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/mailer"
)

type recordingSender struct {
	sent []mailer.Mail
	err  error
}

func (r *recordingSender) Send(m mailer.Mail) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m)
	return nil
}

func TestBookingConfirmationMentionsWorkerAndRush(t *testing.T) {
	sender := &recordingSender{}
	svc := NewMailerService(zap.NewNop(), sender, time.UTC)

	err := svc.SendBookingConfirmationEmail("ana@example.com", BookingDetails{
		Name:         "Ana",
		Service:      "Deep Cleaning",
		ScheduledFor: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Address:      "1 Main St",
		WorkerName:   "Bea",
		Rush:         true,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, "ana@example.com", m.To)
	assert.Equal(t, "Your Deep Cleaning is booked", m.Subject)
	assert.Contains(t, m.Body, "Tuesday, March 4 2025 at 10:00")
	assert.Contains(t, m.Body, "Your cleaner: Bea")
	assert.Contains(t, m.Body, "Rush service")
}

func TestSendErrorIsReturned(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewMailerService(zap.NewNop(), sender, nil)

	err := svc.SendApplicationReceivedEmail("x@example.com", "X")
	assert.EqualError(t, err, "smtp down")
}
