package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/availability"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type SlotsInput struct {
	StylistID  string    `json:"stylist_id" validate:"required"`
	ServiceIDs []string  `json:"service_ids" validate:"required,min=1,unique,dive,required"`
	DateFrom   time.Time `json:"date_from"`
	DateTo     time.Time `json:"date_to"`
}

func (s *Service) AvailableSlots(ctx context.Context, in SlotsInput) (availability.Result, error) {
	in.StylistID = strings.TrimSpace(in.StylistID)
	in.ServiceIDs = normalizeIDs(in.ServiceIDs)
	if err := validateInput(in); err != nil {
		return availability.Result{}, err
	}
	if in.DateFrom.IsZero() {
		return availability.Result{}, validationError("date_from is required")
	}
	if in.DateTo.IsZero() {
		return availability.Result{}, validationError("date_to is required")
	}

	return s.slots.Generate(ctx, availability.Query{
		StylistID:  in.StylistID,
		ServiceIDs: in.ServiceIDs,
		From:       in.DateFrom,
		To:         in.DateTo,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	return s.repo.Get(ctx, id)
}

type Page struct {
	Items      []domain.Appointment
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

func newPage(items []domain.Appointment, total, page, limit int) Page {
	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}

type ListInput struct {
	Status domain.AppointmentStatus `json:"status"`
	Page   int                      `json:"page" validate:"min=1"`
	Limit  int                      `json:"limit" validate:"min=1,max=100"`
}

// List pages through every appointment, newest first.
func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	if err := validateInput(in); err != nil {
		return Page{}, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return Page{}, validationError("status is invalid")
	}

	filter := store.AppointmentFilter{
		Descending: true,
		Offset:     (in.Page - 1) * in.Limit,
		Limit:      in.Limit,
	}
	if in.Status != "" {
		filter.Statuses = []domain.AppointmentStatus{in.Status}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, in.Page, in.Limit), nil
}

type UserFilter string

const (
	UserFilterAll      UserFilter = "ALL"
	UserFilterUpcoming UserFilter = "UPCOMING"
	UserFilterPast     UserFilter = "PAST"
)

type ListForUserInput struct {
	UserID string     `json:"user_id" validate:"required"`
	Filter UserFilter `json:"filter" validate:"omitempty,oneof=ALL UPCOMING PAST"`
	Page   int        `json:"page" validate:"min=1"`
	Limit  int        `json:"limit" validate:"min=1,max=100"`
}

// ListForUser lists one client's appointments. Cancelled appointments are never
// included; upcoming also hides completed and missed ones.
func (s *Service) ListForUser(ctx context.Context, in ListForUserInput) (Page, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := validateInput(in); err != nil {
		return Page{}, err
	}
	if err := s.requireUser(ctx, "user", in.UserID, ""); err != nil {
		return Page{}, err
	}

	now := s.now().UTC()
	filter := store.AppointmentFilter{
		UserID:        in.UserID,
		ExcludeStatus: store.ExcludeCancelled,
		Offset:        (in.Page - 1) * in.Limit,
		Limit:         in.Limit,
	}
	switch in.Filter {
	case UserFilterUpcoming:
		filter.StartsFrom = &now
		filter.ExcludeStatus = []domain.AppointmentStatus{domain.StatusCancelled, domain.StatusCompleted, domain.StatusMissed}
	case UserFilterPast:
		filter.StartsBefore = &now
		filter.Descending = true
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, in.Page, in.Limit), nil
}

type Eligibility struct {
	AppointmentID uuid.UUID
	DateTime      time.Time
	Deadline      time.Time
	CanModify     bool
}

// CanModify reports whether a client may still cancel or reschedule the appointment.
func (s *Service) CanModify(ctx context.Context, id uuid.UUID) (Eligibility, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		AppointmentID: appt.ID,
		DateTime:      appt.DateTime,
		Deadline:      appt.DateTime.Add(-s.policy.ModifyCutoff),
		CanModify:     !appt.Status.Terminal() && s.policy.CanModify(appt.DateTime, s.now()),
	}, nil
}
