package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
)

type NotificationRepo struct {
	db *bun.DB
}

func NewNotificationRepo(db *bun.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) CreateNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if _, err := r.db.NewInsert().Model(&n).Exec(ctx); err != nil {
		return domain.Notification{}, mapWriteError(err)
	}
	return n, nil
}

// NotificationExists reports whether a notification of typ was already recorded
// for the appointment. The reminder sweep uses it to stay idempotent.
func (r *NotificationRepo) NotificationExists(ctx context.Context, appointmentID uuid.UUID, typ domain.NotificationType) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Notification)(nil)).
		Where("appointment_id = ?", appointmentID).
		Where("type = ?", typ).
		Exists(ctx)
}
