package notify

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

// Envelope is the broker wire form of a notification.
type Envelope struct {
	ID            string                  `json:"id,omitempty"`
	Type          domain.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	UserID        string                  `json:"user_id"`
	AppointmentID string                  `json:"appointment_id,omitempty"`
	SendAt        time.Time               `json:"send_at"`
}

func EnvelopeOf(n domain.Notification) Envelope {
	env := Envelope{
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
		UserID:  n.UserID,
		SendAt:  n.SendAt.UTC(),
	}
	if n.ID != uuid.Nil {
		env.ID = n.ID.String()
	}
	if n.AppointmentID != nil {
		env.AppointmentID = n.AppointmentID.String()
	}
	return env
}

func encodeEnvelope(n domain.Notification) ([]byte, error) {
	return json.Marshal(EnvelopeOf(n))
}
