package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

// ExcludeCancelled is the status filter for appointments that occupy a calendar.
var ExcludeCancelled = []domain.AppointmentStatus{domain.StatusCancelled}

type AppointmentFilter struct {
	UserID        string
	Statuses      []domain.AppointmentStatus
	ExcludeStatus []domain.AppointmentStatus
	StartsFrom    *time.Time
	StartsBefore  *time.Time
	Descending    bool
	Offset        int
	Limit         int
}

type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, int, error)
	FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error)

	// InStylistTransaction runs fn in one transaction holding the calendar
	// locks of every given stylist until commit.
	InStylistTransaction(ctx context.Context, fn func(ctx context.Context, tx CalendarTx) error, stylistIDs ...string) error
}
