package mailer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/improveclean/cleaning-site/internal/mailer"
)

const signature = `
Best regards,
ImproveClean Team
`

type MailerService struct {
	log    *zap.Logger
	sender mailer.Sender
	loc    *time.Location
}

func NewMailerService(log *zap.Logger, sender mailer.Sender, loc *time.Location) *MailerService {
	if loc == nil {
		loc = time.UTC
	}
	return &MailerService{
		log:    log,
		sender: sender,
		loc:    loc,
	}
}

// BookingDetails is what the booking emails mention.
type BookingDetails struct {
	Name         string
	Service      string
	ScheduledFor time.Time
	Address      string
	WorkerName   string
	Rush         bool
}

func (m *MailerService) SendBookingConfirmationEmail(to string, d BookingDetails) error {
	body := fmt.Sprintf(`
Dear %s,

Your %s has been scheduled for %s at:
%s
`, d.Name, d.Service, d.ScheduledFor.In(m.loc).Format("Monday, January 2 2006 at 15:04"), d.Address)
	if d.WorkerName != "" {
		body += fmt.Sprintf("\nYour cleaner: %s\n", d.WorkerName)
	}
	if d.Rush {
		body += "\nRush service was applied automatically based on your requested time.\n"
	}
	body += "\nOur team will confirm the details shortly.\n" + signature

	return m.send("booking confirmation", mailer.Mail{
		To:      to,
		Subject: fmt.Sprintf("Your %s is booked", d.Service),
		Body:    body,
	})
}

func (m *MailerService) SendBookingCancellationEmail(to string, d BookingDetails) error {
	body := fmt.Sprintf(`
Dear %s,

Your %s scheduled for %s has been cancelled.

If this was a mistake you can book a new cleaning from your dashboard at any time.
`, d.Name, d.Service, d.ScheduledFor.In(m.loc).Format("Monday, January 2 2006 at 15:04")) + signature

	return m.send("booking cancellation", mailer.Mail{
		To:      to,
		Subject: "Booking Cancelled",
		Body:    body,
	})
}

func (m *MailerService) SendApplicationReceivedEmail(to, fullName string) error {
	body := fmt.Sprintf(`
Dear %s,

Thank you for your interest in working with ImproveClean.
We have received your application and our hiring team will review it soon.
`, fullName) + signature

	return m.send("application received", mailer.Mail{
		To:      to,
		Subject: "We received your application",
		Body:    body,
	})
}

func (m *MailerService) send(kind string, mail mailer.Mail) error {
	if err := m.sender.Send(mail); err != nil {
		m.log.Error("Failed to send "+kind+" email", zap.Error(err), zap.String("email", mail.To))
		return err
	}
	m.log.Info(kind+" email sent", zap.String("email", mail.To))
	return nil
}
