package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

// ServiceCatalog resolves service ids. Resolve fails with ErrNotFound unless
// every id maps to an active service.
type ServiceCatalog interface {
	Resolve(ctx context.Context, ids []string) ([]domain.Service, error)
}

type UserDirectory interface {
	Get(ctx context.Context, id string) (domain.User, error)
	// Exists reports whether an active user exists. An empty role matches any role.
	Exists(ctx context.Context, id string, role domain.UserRole) (bool, error)
	FamilyMemberExists(ctx context.Context, userID, memberID string) (bool, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	NotificationExists(ctx context.Context, appointmentID uuid.UUID, typ domain.NotificationType) (bool, error)
}

// ReminderSource lists appointments due for a reminder.
type ReminderSource interface {
	ListStartingBetween(ctx context.Context, status domain.AppointmentStatus, from, to time.Time) ([]domain.Appointment, error)
}
