package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/events"
	"github.com/improveclean/cleaning-site/internal/metrics"
	mailerService "github.com/improveclean/cleaning-site/internal/service/mailer"
	"github.com/improveclean/cleaning-site/internal/store"
	"github.com/improveclean/cleaning-site/internal/store/users"
)

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

type Mailer interface {
	SendBookingConfirmationEmail(to string, d mailerService.BookingDetails) error
	SendBookingCancellationEmail(to string, d mailerService.BookingDetails) error
	SendApplicationReceivedEmail(to, fullName string) error
}

// DeliveryLog is satisfied by redisx.Deliveries.
type DeliveryLog interface {
	Claim(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

type NotifyService struct {
	log        *zap.Logger
	users      UserLookup
	mailer     Mailer
	deliveries DeliveryLog
}

func NewNotifyService(log *zap.Logger, users UserLookup, mailer Mailer, deliveries DeliveryLog) *NotifyService {
	return &NotifyService{
		log:        log,
		users:      users,
		mailer:     mailer,
		deliveries: deliveries,
	}
}

// Handle sends the email belonging to one encoded event. A message whose
// delivery was already claimed is skipped.
func (s *NotifyService) Handle(ctx context.Context, value []byte) error {
	start := time.Now()
	defer func() { metrics.NotificationDuration.Observe(time.Since(start).Seconds()) }()

	env, err := events.Decode(value)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("decode event: %w", err)
	}

	var send func(context.Context) error
	var entityID int64
	switch env.Type {
	case events.BookingCreated, events.BookingCancelled:
		var p events.BookingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			metrics.NotificationsTotal.WithLabelValues(env.Type, "malformed").Inc()
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		entityID = p.BookingID
		send = func(ctx context.Context) error { return s.sendBooking(ctx, env.Type, p) }
	case events.ApplicationReceived:
		var p events.ApplicationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			metrics.NotificationsTotal.WithLabelValues(env.Type, "malformed").Inc()
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		entityID = p.ApplicationID
		send = func(context.Context) error {
			return s.mailer.SendApplicationReceivedEmail(p.Email, p.FullName)
		}
	default:
		s.log.Warn("ignoring unknown event type", zap.String("type", env.Type))
		metrics.NotificationsTotal.WithLabelValues("unknown", "skipped").Inc()
		return nil
	}

	id := DeliveryID(env.Type, entityID, env.OccurredAt)
	if s.deliveries != nil {
		claimed, err := s.deliveries.Claim(ctx, id)
		if err != nil {
			return fmt.Errorf("claim delivery: %w", err)
		}
		if !claimed {
			s.log.Info("notification already handled", zap.String("delivery", id))
			metrics.NotificationsTotal.WithLabelValues(env.Type, "duplicate").Inc()
			return nil
		}
	}

	if err := send(ctx); err != nil {
		metrics.NotificationsTotal.WithLabelValues(env.Type, "failed").Inc()
		if s.deliveries != nil {
			if rerr := s.deliveries.Release(ctx, id); rerr != nil {
				s.log.Error("failed to release delivery", zap.Error(rerr), zap.String("delivery", id))
			}
		}
		return err
	}

	if s.deliveries != nil {
		if err := s.deliveries.MarkProcessed(ctx, id); err != nil {
			s.log.Error("failed to mark delivery processed", zap.Error(err), zap.String("delivery", id))
		}
	}
	metrics.NotificationsTotal.WithLabelValues(env.Type, "sent").Inc()
	return nil
}

func (s *NotifyService) sendBooking(ctx context.Context, eventType string, p events.BookingPayload) error {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		s.log.Error("Failed to get user", zap.Error(err), zap.Int64("user_id", p.UserID))
		return err
	}
	if user == nil {
		return fmt.Errorf("user not found: %d", p.UserID)
	}
	if user.Email == "" {
		s.log.Info("user has no email, skipping notification", zap.Int64("user_id", p.UserID))
		return nil
	}

	d := mailerService.BookingDetails{
		Name:         user.FullName(),
		Service:      store.ServiceType(p.ServiceType).Label(),
		ScheduledFor: p.ScheduledFor,
		Address:      p.Address,
		WorkerName:   p.WorkerName,
		Rush:         p.Rush,
	}
	if eventType == events.BookingCancelled {
		return s.mailer.SendBookingCancellationEmail(user.Email, d)
	}
	return s.mailer.SendBookingConfirmationEmail(user.Email, d)
}

// DeliveryID is stable across redeliveries of the same event.
func DeliveryID(eventType string, entityID int64, at time.Time) string {
	return fmt.Sprintf("%s:%d:%d", eventType, entityID, at.UnixNano())
}
