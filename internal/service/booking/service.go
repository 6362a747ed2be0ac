package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/availability"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const DefaultCancellationReason = "cancelled by administrator"

// Notifier receives post-transition events. Delivery is best-effort: it never
// reports failures back to the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
	Realtime(ctx context.Context, userID string, ev domain.RealtimeEvent)
}

// Actor identifies who initiates a cancel or reschedule request.
type Actor string

const (
	ActorStaff  Actor = "staff"
	ActorClient Actor = "client"
)

type Service struct {
	repo     store.AppointmentRepository
	catalog  store.ServiceCatalog
	users    store.UserDirectory
	notifier Notifier
	slots    *availability.Generator
	policy   domain.BookingPolicy
	now      func() time.Time
	log      *slog.Logger
}

func NewService(repo store.AppointmentRepository, catalog store.ServiceCatalog, users store.UserDirectory, notifier Notifier, policy domain.BookingPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		users:    users,
		notifier: notifier,
		slots:    availability.NewGenerator(catalog, users, repo, policy),
		policy:   policy,
		now:      time.Now,
		log:      logger.With("component", "booking"),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.slots.WithClock(now)
	return s
}

func (s *Service) Policy() domain.BookingPolicy {
	return s.policy
}

type CreateInput struct {
	UserID         string    `json:"user_id" validate:"required"`
	FamilyMemberID string    `json:"family_member_id"`
	StylistID      string    `json:"stylist_id" validate:"required"`
	ServiceIDs     []string  `json:"service_ids" validate:"required,min=1,unique,dive,required"`
	DateTime       time.Time `json:"date_time"`
	Notes          string    `json:"notes" validate:"max=2000"`
	InternalNotes  string    `json:"internal_notes" validate:"max=2000"`
	IdempotencyKey string    `json:"idempotency_key" validate:"max=256"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.StylistID = strings.TrimSpace(in.StylistID)
	in.FamilyMemberID = strings.TrimSpace(in.FamilyMemberID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	in.ServiceIDs = normalizeIDs(in.ServiceIDs)
	if err := validateInput(in); err != nil {
		return domain.Appointment{}, err
	}
	if in.DateTime.IsZero() {
		return domain.Appointment{}, validationError("date_time is required")
	}

	dateTime := in.DateTime.UTC()
	if !dateTime.After(s.now()) {
		return domain.Appointment{}, ErrInvalidDate
	}

	if err := s.requireUser(ctx, "user", in.UserID, ""); err != nil {
		return domain.Appointment{}, err
	}
	if err := s.requireUser(ctx, "stylist", in.StylistID, domain.RoleStylist); err != nil {
		return domain.Appointment{}, err
	}

	var familyMemberID *string
	if in.FamilyMemberID != "" {
		ok, err := s.users.FamilyMemberExists(ctx, in.UserID, in.FamilyMemberID)
		if err != nil {
			return domain.Appointment{}, err
		}
		if !ok {
			return domain.Appointment{}, fmt.Errorf("family member %s: %w", in.FamilyMemberID, store.ErrNotFound)
		}
		id := in.FamilyMemberID
		familyMemberID = &id
	}

	services, err := s.catalog.Resolve(ctx, in.ServiceIDs)
	if err != nil {
		return domain.Appointment{}, err
	}
	total := domain.TotalDuration(services)

	appt := domain.Appointment{
		UserID:          in.UserID,
		FamilyMemberID:  familyMemberID,
		StylistID:       in.StylistID,
		DateTime:        dateTime,
		EndTime:         dateTime.Add(total),
		DurationMinutes: int(total / time.Minute),
		Status:          domain.StatusScheduled,
		Notes:           in.Notes,
		InternalNotes:   in.InternalNotes,
	}
	if in.IdempotencyKey != "" {
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("salonbook:create_appointment:"+in.UserID+":"+in.IdempotencyKey))
	}

	var (
		created  domain.Appointment
		replayed bool
	)
	err = s.repo.InStylistTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointmentForUpdate(ctx, appt.ID)
			switch {
			case err == nil:
				if !sameBooking(existing, appt, in.ServiceIDs) {
					return store.ErrIdempotencyConflict
				}
				created, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if err := checkConflict(ctx, tx, appt.StylistID, appt.DateTime, appt.EndTime, uuid.Nil); err != nil {
			return err
		}
		a, err := tx.CreateAppointment(ctx, appt, in.ServiceIDs)
		if err != nil {
			return err
		}
		created = a
		return nil
	}, appt.StylistID)
	if err != nil {
		return domain.Appointment{}, err
	}

	if replayed {
		s.log.Info("appointment create replayed", "appointment_id", created.ID)
		return created, nil
	}

	s.log.Info("appointment created", "appointment_id", created.ID, "stylist_id", created.StylistID, "date_time", created.DateTime)
	s.notify(ctx, domain.NotificationAppointmentCreated, created.StylistID, created.ID,
		"New appointment",
		fmt.Sprintf("New appointment on %s: %s.", s.label(created.DateTime), serviceNames(services)))
	return created, nil
}

// UpdateInput is a partial update. Nil fields keep their current value.
type UpdateInput struct {
	ID            uuid.UUID                 `json:"id"`
	DateTime      *time.Time                `json:"date_time"`
	StylistID     *string                   `json:"stylist_id" validate:"omitnil,min=1"`
	ServiceIDs    []string                  `json:"service_ids" validate:"omitnil,min=1,unique,dive,required"`
	Notes         *string                   `json:"notes" validate:"omitnil,max=2000"`
	InternalNotes *string                   `json:"internal_notes" validate:"omitnil,max=2000"`
	Status        *domain.AppointmentStatus `json:"status"`
}

// Update applies a partial change. Any change to the date, the stylist or the
// service set forces PENDING_CONFIRMATION and notifies the stylist; otherwise
// a caller-supplied status is applied as is. Confirming a pending change and
// cancelling both notify the owner.
func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.Appointment, error) {
	if in.ID == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	if in.StylistID != nil {
		trimmed := strings.TrimSpace(*in.StylistID)
		in.StylistID = &trimmed
	}
	in.ServiceIDs = normalizeIDs(in.ServiceIDs)
	if err := validateInput(in); err != nil {
		return domain.Appointment{}, err
	}
	if in.Status != nil && !in.Status.Valid() {
		return domain.Appointment{}, validationError("status is invalid")
	}
	if in.DateTime != nil && in.DateTime.IsZero() {
		return domain.Appointment{}, validationError("date_time is invalid")
	}

	current, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if current.Status.Terminal() {
		return domain.Appointment{}, ErrInvalidTransition
	}

	stylistID := current.StylistID
	if in.StylistID != nil && *in.StylistID != current.StylistID {
		if err := s.requireUser(ctx, "stylist", *in.StylistID, domain.RoleStylist); err != nil {
			return domain.Appointment{}, err
		}
		stylistID = *in.StylistID
	}

	var services []domain.Service
	if in.ServiceIDs != nil {
		services, err = s.catalog.Resolve(ctx, in.ServiceIDs)
		if err != nil {
			return domain.Appointment{}, err
		}
	}

	if in.DateTime != nil && !in.DateTime.Equal(current.DateTime) && !in.DateTime.After(s.now()) {
		return domain.Appointment{}, ErrInvalidDate
	}

	var (
		before   domain.Appointment
		updated  domain.Appointment
		material bool
	)
	err = s.repo.InStylistTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetAppointmentForUpdate(ctx, in.ID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return ErrInvalidTransition
		}
		if cur.StylistID != current.StylistID {
			// Moved to another calendar after the locks were chosen.
			return store.ErrConflict
		}

		next := cur
		var serviceIDs []string
		changed := false
		if in.DateTime != nil && !in.DateTime.Equal(cur.DateTime) {
			next.DateTime = in.DateTime.UTC()
			changed = true
		}
		if stylistID != cur.StylistID {
			next.StylistID = stylistID
			changed = true
		}
		if in.ServiceIDs != nil && !domain.SameServiceSet(in.ServiceIDs, cur.ServiceIDs()) {
			serviceIDs = sortedCopy(in.ServiceIDs)
			next.DurationMinutes = int(domain.TotalDuration(services) / time.Minute)
			changed = true
		}
		next.EndTime = next.DateTime.Add(next.Duration())
		if in.Notes != nil {
			next.Notes = *in.Notes
		}
		if in.InternalNotes != nil {
			next.InternalNotes = *in.InternalNotes
		}

		if changed {
			next.Status = domain.StatusPendingConfirmation
			if err := checkConflict(ctx, tx, next.StylistID, next.DateTime, next.EndTime, next.ID); err != nil {
				return err
			}
		} else if in.Status != nil {
			next.Status = *in.Status
			if next.Status == domain.StatusCancelled && next.CancellationReason == nil {
				reason := DefaultCancellationReason
				next.CancellationReason = &reason
			}
		}

		u, err := tx.UpdateAppointment(ctx, next, serviceIDs)
		if err != nil {
			return err
		}
		before, updated, material = cur, u, changed
		return nil
	}, current.StylistID, stylistID)
	if err != nil {
		return domain.Appointment{}, err
	}

	s.log.Info("appointment updated", "appointment_id", updated.ID, "status", updated.Status, "material_change", material)
	switch {
	case material:
		s.announceChange(ctx, before, updated)
	case updated.Status == domain.StatusCancelled:
		reason := DefaultCancellationReason
		if updated.CancellationReason != nil {
			reason = *updated.CancellationReason
		}
		s.notify(ctx, domain.NotificationAppointmentCancelled, updated.UserID, updated.ID,
			"Appointment cancelled",
			fmt.Sprintf("Your appointment on %s was cancelled. Reason: %s", s.label(updated.DateTime), reason))
	case before.Status == domain.StatusPendingConfirmation && updated.Status == domain.StatusScheduled:
		s.notify(ctx, domain.NotificationAppointmentChangeConfirmed, updated.UserID, updated.ID,
			"Appointment change confirmed",
			fmt.Sprintf("Your appointment on %s is confirmed.", s.label(updated.DateTime)))
	}
	return updated, nil
}

func (s *Service) announceChange(ctx context.Context, before, after domain.Appointment) {
	var changes []string
	if !after.DateTime.Equal(before.DateTime) {
		changes = append(changes, "date: "+s.label(after.DateTime))
	}
	if after.StylistID != before.StylistID {
		name := after.StylistID
		if u, err := s.users.Get(ctx, after.StylistID); err == nil && u.Name != "" {
			name = u.Name
		}
		changes = append(changes, "stylist: "+name)
	}
	if !domain.SameServiceSet(after.ServiceIDs(), before.ServiceIDs()) {
		changes = append(changes, "services: "+serviceNames(after.Services))
	}

	title := "Appointment changed"
	message := fmt.Sprintf("The appointment on %s was changed (%s) and awaits confirmation.", s.label(before.DateTime), strings.Join(changes, "; "))
	s.notify(ctx, domain.NotificationAppointmentChanged, after.StylistID, after.ID, title, message)
	if s.notifier != nil {
		s.notifier.Realtime(ctx, after.StylistID, domain.RealtimeEvent{Title: title, Message: message})
	}
}

type CancelInput struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason" validate:"max=500"`
	Actor  Actor     `json:"actor" validate:"omitempty,oneof=staff client"`
}

// Cancel marks the appointment CANCELLED and keeps the row. The owner is notified.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (domain.Appointment, error) {
	if in.ID == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validateInput(in); err != nil {
		return domain.Appointment{}, err
	}
	reason := in.Reason
	if reason == "" {
		reason = DefaultCancellationReason
	}

	updated, err := s.transition(ctx, in.ID, in.Actor, func(next *domain.Appointment) {
		next.Status = domain.StatusCancelled
		next.CancellationReason = &reason
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.log.Info("appointment cancelled", "appointment_id", updated.ID, "actor", actorOrDefault(in.Actor))
	s.notify(ctx, domain.NotificationAppointmentCancelled, updated.UserID, updated.ID,
		"Appointment cancelled",
		fmt.Sprintf("Your appointment on %s was cancelled. Reason: %s", s.label(updated.DateTime), reason))
	return updated, nil
}

type RescheduleInput struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason" validate:"max=500"`
	Actor  Actor     `json:"actor" validate:"omitempty,oneof=staff client"`
}

// RequestReschedule flips the appointment back to PENDING_CONFIRMATION and asks
// the stylist to follow up.
func (s *Service) RequestReschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	if in.ID == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validateInput(in); err != nil {
		return domain.Appointment{}, err
	}

	updated, err := s.transition(ctx, in.ID, in.Actor, func(next *domain.Appointment) {
		next.Status = domain.StatusPendingConfirmation
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	message := fmt.Sprintf("The client asked to reschedule the appointment on %s.", s.label(updated.DateTime))
	if in.Reason != "" {
		message += " Note: " + in.Reason
	}
	s.log.Info("appointment reschedule requested", "appointment_id", updated.ID, "actor", actorOrDefault(in.Actor))
	s.notify(ctx, domain.NotificationAppointmentRescheduled, updated.StylistID, updated.ID, "Reschedule requested", message)
	return updated, nil
}

// transition applies a status-only change to a non-terminal appointment under
// its stylist's calendar lock.
func (s *Service) transition(ctx context.Context, id uuid.UUID, actor Actor, apply func(next *domain.Appointment)) (domain.Appointment, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkModifiable(current, actor); err != nil {
		return domain.Appointment{}, err
	}

	var updated domain.Appointment
	err = s.repo.InStylistTransaction(ctx, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkModifiable(cur, actor); err != nil {
			return err
		}
		next := cur
		apply(&next)
		u, err := tx.UpdateAppointment(ctx, next, nil)
		if err != nil {
			return err
		}
		updated = u
		return nil
	}, current.StylistID)
	if err != nil {
		return domain.Appointment{}, err
	}
	return updated, nil
}

func (s *Service) checkModifiable(appt domain.Appointment, actor Actor) error {
	if appt.Status.Terminal() {
		return ErrInvalidTransition
	}
	if actor == ActorClient && !s.policy.CanModify(appt.DateTime, s.now()) {
		return ErrModificationWindowClosed
	}
	return nil
}

func (s *Service) requireUser(ctx context.Context, kind, id string, role domain.UserRole) error {
	ok, err := s.users.Exists(ctx, id, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, typ domain.NotificationType, userID string, appointmentID uuid.UUID, title, message string) {
	if s.notifier == nil {
		return
	}
	id := appointmentID
	s.notifier.Notify(ctx, domain.Notification{
		Type:          typ,
		Title:         title,
		Message:       message,
		UserID:        userID,
		AppointmentID: &id,
		SendAt:        s.now().UTC(),
	})
}

func (s *Service) label(t time.Time) string {
	return t.In(s.policy.Loc()).Format("Mon 2 Jan 2006 15:04")
}

// checkConflict is the authoritative overlap test run inside the calendar
// transaction right before a write. self is excluded from the busy set.
func checkConflict(ctx context.Context, tx store.CalendarTx, stylistID string, start, end time.Time, self uuid.UUID) error {
	existing, err := tx.FindOverlapping(ctx, stylistID, start, end, store.ExcludeCancelled)
	if err != nil {
		return err
	}
	others := make([]domain.Appointment, 0, len(existing))
	for _, a := range existing {
		if a.ID == self {
			continue
		}
		others = append(others, a)
	}
	if availability.HasConflict(start, end, availability.IntervalsOf(others)) {
		return store.ErrConflict
	}
	return nil
}

func sameBooking(existing, requested domain.Appointment, serviceIDs []string) bool {
	if existing.UserID != requested.UserID ||
		existing.StylistID != requested.StylistID ||
		existing.Notes != requested.Notes ||
		!existing.DateTime.Equal(requested.DateTime) {
		return false
	}
	if (existing.FamilyMemberID == nil) != (requested.FamilyMemberID == nil) {
		return false
	}
	if existing.FamilyMemberID != nil && *existing.FamilyMemberID != *requested.FamilyMemberID {
		return false
	}
	return domain.SameServiceSet(existing.ServiceIDs(), serviceIDs)
}

func normalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.TrimSpace(id))
	}
	return out
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func serviceNames(services []domain.Service) string {
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}
	return strings.Join(names, ", ")
}

func actorOrDefault(a Actor) Actor {
	if a == "" {
		return ActorStaff
	}
	return a
}
