package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type NotificationType string

const (
	NotificationAppointmentCreated         NotificationType = "APPOINTMENT_CREATED"
	NotificationAppointmentChanged         NotificationType = "APPOINTMENT_CHANGED"
	NotificationAppointmentChangeConfirmed NotificationType = "APPOINTMENT_CHANGE_CONFIRMED"
	NotificationAppointmentCancelled       NotificationType = "APPOINTMENT_CANCELLED"
	NotificationAppointmentRescheduled     NotificationType = "APPOINTMENT_RESCHEDULED"
	NotificationReminder24h                NotificationType = "REMINDER_24H"
	NotificationReminder1h                 NotificationType = "REMINDER_1H"
)

// Notification is the payload handed to the delivery collaborator.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID            uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	Type          NotificationType `bun:"type,notnull" json:"type"`
	Title         string           `bun:"title,notnull" json:"title"`
	Message       string           `bun:"message,notnull" json:"message"`
	UserID        string           `bun:"user_id,notnull" json:"user_id"`
	AppointmentID *uuid.UUID       `bun:"appointment_id,type:uuid" json:"appointment_id,omitempty"`
	SendAt        time.Time        `bun:"send_at,notnull" json:"send_at"`
	CreatedAt     time.Time        `bun:"created_at,notnull" json:"created_at"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if n.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		n.ID = id
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}

// RealtimeEvent is pushed to a user's live channel alongside a persisted notification.
type RealtimeEvent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
