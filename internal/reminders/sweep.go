package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const DefaultWindow = 5 * time.Minute

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type rule struct {
	typ   domain.NotificationType
	lead  time.Duration
	title string
}

var rules = []rule{
	{typ: domain.NotificationReminder24h, lead: 24 * time.Hour, title: "Appointment tomorrow"},
	{typ: domain.NotificationReminder1h, lead: time.Hour, title: "Appointment in one hour"},
}

// Sweeper sends 24h and 1h reminders for scheduled appointments. An appointment
// receives each reminder type at most once; it never changes the appointment.
type Sweeper struct {
	appts    store.ReminderSource
	sent     store.NotificationStore
	notifier Notifier
	policy   domain.BookingPolicy
	window   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func NewSweeper(appts store.ReminderSource, sent store.NotificationStore, notifier Notifier, policy domain.BookingPolicy, window time.Duration, logger *slog.Logger) *Sweeper {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		appts:    appts,
		sent:     sent,
		notifier: notifier,
		policy:   policy,
		window:   window,
		now:      time.Now,
		log:      logger.With("component", "reminders"),
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep runs one pass and returns how many reminders were handed to the notifier.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	sent := 0
	for _, r := range rules {
		target := now.Add(r.lead)
		due, err := s.appts.ListStartingBetween(ctx, domain.StatusScheduled, target.Add(-s.window), target.Add(s.window))
		if err != nil {
			return sent, fmt.Errorf("list %s candidates: %w", r.typ, err)
		}

		for _, appt := range due {
			exists, err := s.sent.NotificationExists(ctx, appt.ID, r.typ)
			if err != nil {
				s.log.Warn("reminder dedup check failed", "appointment_id", appt.ID, "type", r.typ, "err", err)
				continue
			}
			if exists {
				continue
			}

			id := appt.ID
			s.notifier.Notify(ctx, domain.Notification{
				Type:          r.typ,
				Title:         r.title,
				Message:       fmt.Sprintf("Reminder: your appointment starts on %s.", appt.DateTime.In(s.policy.Loc()).Format("Mon 2 Jan 2006 15:04")),
				UserID:        appt.UserID,
				AppointmentID: &id,
				SendAt:        now,
			})
			sent++
		}
	}
	return sent, nil
}
