// Package events defines the notification messages published to Kafka.
package events

import (
	"encoding/json"
	"time"
)

const (
	BookingCreated      = "booking.created"
	BookingCancelled    = "booking.cancelled"
	ApplicationReceived = "application.received"
)

// Envelope wraps every payload so consumers can dispatch on Type.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type BookingPayload struct {
	BookingID    int64     `json:"booking_id"`
	UserID       int64     `json:"user_id"`
	ServiceType  string    `json:"service_type"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Address      string    `json:"address"`
	WorkerName   string    `json:"worker_name,omitempty"`
	Rush         bool      `json:"rush"`
}

type ApplicationPayload struct {
	ApplicationID int64  `json:"application_id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
}

// Encode builds the wire form of an event.
func Encode(eventType string, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, OccurredAt: at, Payload: raw})
}

func Decode(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}
