package grpc

import (
	"time"

	"salonbook/backend/internal/availability"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/booking"
)

type ServiceSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
}

type Appointment struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	FamilyMemberID     string           `json:"family_member_id,omitempty"`
	StylistID          string           `json:"stylist_id"`
	DateTime           time.Time        `json:"date_time"`
	EndTime            time.Time        `json:"end_time"`
	DurationMinutes    int              `json:"duration_minutes"`
	Status             string           `json:"status"`
	Notes              string           `json:"notes,omitempty"`
	InternalNotes      string           `json:"internal_notes,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	Services           []ServiceSummary `json:"services"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type AppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type GetAvailableSlotsRequest struct {
	StylistID  string    `json:"stylist_id"`
	ServiceIDs []string  `json:"service_ids"`
	DateFrom   time.Time `json:"date_from"`
	DateTo     time.Time `json:"date_to"`
}

type Slot struct {
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	StylistID       string           `json:"stylist_id"`
	DurationMinutes int              `json:"duration_minutes"`
	Services        []ServiceSummary `json:"services"`
}

type GetAvailableSlotsResponse struct {
	Slots                []Slot `json:"slots"`
	TotalDurationMinutes int    `json:"total_duration_minutes"`
	WorkingHours         string `json:"working_hours"`
}

type CreateAppointmentRequest struct {
	UserID         string    `json:"user_id"`
	FamilyMemberID string    `json:"family_member_id,omitempty"`
	StylistID      string    `json:"stylist_id"`
	ServiceIDs     []string  `json:"service_ids"`
	DateTime       time.Time `json:"date_time"`
	Notes          string    `json:"notes,omitempty"`
	InternalNotes  string    `json:"internal_notes,omitempty"`
}

// UpdateAppointmentRequest carries a partial update; omitted fields are kept.
type UpdateAppointmentRequest struct {
	AppointmentID string     `json:"appointment_id"`
	DateTime      *time.Time `json:"date_time,omitempty"`
	StylistID     *string    `json:"stylist_id,omitempty"`
	ServiceIDs    []string   `json:"service_ids,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	InternalNotes *string    `json:"internal_notes,omitempty"`
	Status        *string    `json:"status,omitempty"`
}

type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

type RequestRescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type ListAppointmentsRequest struct {
	Status string `json:"status,omitempty"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

type ListUserAppointmentsRequest struct {
	UserID string `json:"user_id"`
	Filter string `json:"filter,omitempty"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment `json:"appointments"`
	Total        int            `json:"total"`
	Page         int            `json:"page"`
	Limit        int            `json:"limit"`
	TotalPages   int            `json:"total_pages"`
}

type CheckModifiableRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type CheckModifiableResponse struct {
	AppointmentID string    `json:"appointment_id"`
	DateTime      time.Time `json:"date_time"`
	Deadline      time.Time `json:"deadline"`
	CanModify     bool      `json:"can_modify"`
}

func toAppointment(a domain.Appointment) *Appointment {
	out := &Appointment{
		ID:              a.ID.String(),
		UserID:          a.UserID,
		StylistID:       a.StylistID,
		DateTime:        a.DateTime,
		EndTime:         a.EndTime,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		InternalNotes:   a.InternalNotes,
		Services:        make([]ServiceSummary, 0, len(a.Services)),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.FamilyMemberID != nil {
		out.FamilyMemberID = *a.FamilyMemberID
	}
	if a.CancellationReason != nil {
		out.CancellationReason = *a.CancellationReason
	}
	for _, s := range a.Services {
		out.Services = append(out.Services, ServiceSummary{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           s.Price.StringFixed(2),
		})
	}
	return out
}

func toSlots(res availability.Result, workingHours string) *GetAvailableSlotsResponse {
	out := &GetAvailableSlotsResponse{
		Slots:                make([]Slot, 0, len(res.Slots)),
		TotalDurationMinutes: int(res.TotalDuration / time.Minute),
		WorkingHours:         workingHours,
	}
	for _, s := range res.Slots {
		services := make([]ServiceSummary, 0, len(s.Services))
		for _, svc := range s.Services {
			services = append(services, ServiceSummary{
				ID:              svc.ID,
				Name:            svc.Name,
				DurationMinutes: svc.DurationMinutes,
				Price:           svc.Price.StringFixed(2),
			})
		}
		out.Slots = append(out.Slots, Slot{
			Start:           s.Start,
			End:             s.End,
			StylistID:       res.Stylist.ID,
			DurationMinutes: s.DurationMinutes,
			Services:        services,
		})
	}
	return out
}

func toPage(p booking.Page) *ListAppointmentsResponse {
	out := &ListAppointmentsResponse{
		Appointments: make([]*Appointment, 0, len(p.Items)),
		Total:        p.Total,
		Page:         p.Page,
		Limit:        p.Limit,
		TotalPages:   p.TotalPages,
	}
	for _, a := range p.Items {
		out.Appointments = append(out.Appointments, toAppointment(a))
	}
	return out
}
