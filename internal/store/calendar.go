package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

type CalendarTx interface {
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error)

	// CreateAppointment inserts the appointment and one link row per service id,
	// returning the full projection.
	CreateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error)

	// UpdateAppointment writes appt. A non-nil serviceIDs replaces every link row.
	// The returned value is re-read after the write.
	UpdateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error)
}
