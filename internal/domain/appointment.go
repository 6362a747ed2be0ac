package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusPendingConfirmation AppointmentStatus = "PENDING_CONFIRMATION"
	StatusScheduled           AppointmentStatus = "SCHEDULED"
	StatusCancelled           AppointmentStatus = "CANCELLED"
	StatusCompleted           AppointmentStatus = "COMPLETED"
	StatusMissed              AppointmentStatus = "MISSED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusScheduled, StatusCancelled, StatusCompleted, StatusMissed:
		return true
	}
	return false
}

// Terminal reports whether no further in-core transitions are defined for s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusMissed
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                 uuid.UUID         `bun:"id,pk,type:uuid"`
	UserID             string            `bun:"user_id,notnull"`
	FamilyMemberID     *string           `bun:"family_member_id"`
	StylistID          string            `bun:"stylist_id,notnull"`
	DateTime           time.Time         `bun:"date_time,notnull"`
	EndTime            time.Time         `bun:"end_time,notnull"`
	DurationMinutes    int               `bun:"duration_minutes,notnull"`
	Status             AppointmentStatus `bun:"status,notnull"`
	Notes              string            `bun:"notes"`
	CancellationReason *string           `bun:"cancellation_reason"`
	InternalNotes      string            `bun:"internal_notes"`
	CreatedAt          time.Time         `bun:"created_at,notnull"`
	UpdatedAt          time.Time         `bun:"updated_at,notnull"`

	Services []Service `bun:"m2m:appointment_services,join:Appointment=Service"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Duration is the summed length of the booked services.
func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// ServiceIDs returns the linked service ids, sorted.
func (a Appointment) ServiceIDs() []string {
	ids := make([]string, 0, len(a.Services))
	for _, s := range a.Services {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// AppointmentService is the join row between an appointment and one booked service.
type AppointmentService struct {
	bun.BaseModel `bun:"table:appointment_services"`

	AppointmentID uuid.UUID    `bun:"appointment_id,pk,type:uuid"`
	Appointment   *Appointment `bun:"rel:belongs-to,join:appointment_id=id"`
	ServiceID     string       `bun:"service_id,pk"`
	Service       *Service     `bun:"rel:belongs-to,join:service_id=id"`
}

// SameServiceSet compares two id lists as sets, ignoring order.
func SameServiceSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
