package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"salonbook/backend/internal/availability"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/booking"
	"salonbook/backend/internal/store"
)

type BookingServer struct {
	svc bookingService
	log *slog.Logger
}

type bookingService interface {
	AvailableSlots(ctx context.Context, in booking.SlotsInput) (availability.Result, error)
	Create(ctx context.Context, in booking.CreateInput) (domain.Appointment, error)
	Update(ctx context.Context, in booking.UpdateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, in booking.CancelInput) (domain.Appointment, error)
	RequestReschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, in booking.ListInput) (booking.Page, error)
	ListForUser(ctx context.Context, in booking.ListForUserInput) (booking.Page, error)
	CanModify(ctx context.Context, id uuid.UUID) (booking.Eligibility, error)
	Policy() domain.BookingPolicy
}

func NewBookingServer(svc bookingService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.booking")),
	}
}

func (s *BookingServer) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAvailableSlots"))

	res, err := s.svc.AvailableSlots(ctx, booking.SlotsInput{
		StylistID:  req.StylistID,
		ServiceIDs: req.ServiceIDs,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	})
	if err != nil {
		return nil, s.fail(log, "available slots failed", err, slog.String("stylist_id", req.StylistID))
	}

	log.Debug(
		"available slots listed",
		slog.String("stylist_id", req.StylistID),
		slog.Int("count", len(res.Slots)),
		slog.Time("date_from", req.DateFrom),
		slog.Time("date_to", req.DateTo),
	)
	return toSlots(res, s.svc.Policy().WorkingHoursLabel()), nil
}

func (s *BookingServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	appt, err := s.svc.Create(ctx, booking.CreateInput{
		UserID:         req.UserID,
		FamilyMemberID: req.FamilyMemberID,
		StylistID:      req.StylistID,
		ServiceIDs:     req.ServiceIDs,
		DateTime:       req.DateTime,
		Notes:          req.Notes,
		InternalNotes:  req.InternalNotes,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.fail(log, "appointment create failed", err,
			slog.String("user_id", req.UserID),
			slog.String("stylist_id", req.StylistID),
			slog.Time("date_time", req.DateTime),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("user_id", appt.UserID),
		slog.String("stylist_id", appt.StylistID),
		slog.Time("date_time", appt.DateTime),
	)
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *BookingServer) UpdateAppointment(ctx context.Context, req *UpdateAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateAppointment"))

	id, err := parseAppointmentID(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	in := booking.UpdateInput{
		ID:            id,
		DateTime:      req.DateTime,
		StylistID:     req.StylistID,
		ServiceIDs:    req.ServiceIDs,
		Notes:         req.Notes,
		InternalNotes: req.InternalNotes,
	}
	if req.Status != nil {
		st := domain.AppointmentStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		in.Status = &st
	}

	appt, err := s.svc.Update(ctx, in)
	if err != nil {
		return nil, s.fail(log, "appointment update failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment updated", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *BookingServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	id, err := parseAppointmentID(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	appt, err := s.svc.Cancel(ctx, booking.CancelInput{ID: id, Reason: req.Reason, Actor: booking.Actor(req.Actor)})
	if err != nil {
		return nil, s.fail(log, "appointment cancel failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", id.String()))
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *BookingServer) RequestReschedule(ctx context.Context, req *RequestRescheduleRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "RequestReschedule"))

	id, err := parseAppointmentID(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	appt, err := s.svc.RequestReschedule(ctx, booking.RescheduleInput{ID: id, Reason: req.Reason, Actor: booking.Actor(req.Actor)})
	if err != nil {
		return nil, s.fail(log, "reschedule request failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info("reschedule requested", slog.String("appointment_id", id.String()))
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *BookingServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	id, err := parseAppointmentID(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	appt, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, s.fail(log, "appointment get failed", err, slog.String("appointment_id", id.String()))
	}
	return &AppointmentResponse{Appointment: toAppointment(appt)}, nil
}

func (s *BookingServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	page, err := s.svc.List(ctx, booking.ListInput{
		Status: domain.AppointmentStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Page:   req.Page,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, s.fail(log, "appointments list failed", err)
	}

	log.Debug("appointments listed", slog.Int("count", len(page.Items)), slog.Int("total", page.Total))
	return toPage(page), nil
}

func (s *BookingServer) ListUserAppointments(ctx context.Context, req *ListUserAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListUserAppointments"))

	filter := booking.UserFilter(strings.ToUpper(strings.TrimSpace(req.Filter)))
	page, err := s.svc.ListForUser(ctx, booking.ListForUserInput{
		UserID: req.UserID,
		Filter: filter,
		Page:   req.Page,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, s.fail(log, "user appointments list failed", err, slog.String("user_id", req.UserID))
	}

	log.Debug("user appointments listed", slog.String("user_id", req.UserID), slog.Int("count", len(page.Items)))
	return toPage(page), nil
}

func (s *BookingServer) CheckModifiable(ctx context.Context, req *CheckModifiableRequest) (*CheckModifiableResponse, error) {
	log := s.log.With(slog.String("rpc", "CheckModifiable"))

	id, err := parseAppointmentID(req.AppointmentID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, err
	}

	el, err := s.svc.CanModify(ctx, id)
	if err != nil {
		return nil, s.fail(log, "eligibility check failed", err, slog.String("appointment_id", id.String()))
	}
	return &CheckModifiableResponse{
		AppointmentID: el.AppointmentID.String(),
		DateTime:      el.DateTime,
		Deadline:      el.Deadline,
		CanModify:     el.CanModify,
	}, nil
}

// fail maps a service error to a status. Expected client errors are logged
// quietly; anything unrecognised is logged at error level and hidden.
func (s *BookingServer) fail(log *slog.Logger, msg string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, booking.ErrInvalidDate), errors.Is(err, availability.ErrInvalidRange):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", args...)
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info("slot conflict", args...)
		return status.Error(codes.FailedPrecondition, "That time slot is already booked. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict", args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	case errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrModificationWindowClosed):
		log.Info("transition rejected", args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	log.Error(msg, args...)
	return status.Error(codes.Internal, "internal error")
}

func parseAppointmentID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "appointment_id must be a UUID")
	}
	return id, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
