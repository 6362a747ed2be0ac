package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"salonbook/backend/internal/availability"
	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/booking"
	"salonbook/backend/internal/store"
)

type fakeBookingService struct {
	slotsFn      func(ctx context.Context, in booking.SlotsInput) (availability.Result, error)
	createFn     func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error)
	updateFn     func(ctx context.Context, in booking.UpdateInput) (domain.Appointment, error)
	cancelFn     func(ctx context.Context, in booking.CancelInput) (domain.Appointment, error)
	rescheduleFn func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	getFn        func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listFn       func(ctx context.Context, in booking.ListInput) (booking.Page, error)
	listUserFn   func(ctx context.Context, in booking.ListForUserInput) (booking.Page, error)
	canModifyFn  func(ctx context.Context, id uuid.UUID) (booking.Eligibility, error)
}

func (f *fakeBookingService) AvailableSlots(ctx context.Context, in booking.SlotsInput) (availability.Result, error) {
	if f.slotsFn == nil {
		panic("AvailableSlots not configured")
	}
	return f.slotsFn(ctx, in)
}

func (f *fakeBookingService) Create(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeBookingService) Update(ctx context.Context, in booking.UpdateInput) (domain.Appointment, error) {
	if f.updateFn == nil {
		panic("Update not configured")
	}
	return f.updateFn(ctx, in)
}

func (f *fakeBookingService) Cancel(ctx context.Context, in booking.CancelInput) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, in)
}

func (f *fakeBookingService) RequestReschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
	if f.rescheduleFn == nil {
		panic("RequestReschedule not configured")
	}
	return f.rescheduleFn(ctx, in)
}

func (f *fakeBookingService) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeBookingService) List(ctx context.Context, in booking.ListInput) (booking.Page, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, in)
}

func (f *fakeBookingService) ListForUser(ctx context.Context, in booking.ListForUserInput) (booking.Page, error) {
	if f.listUserFn == nil {
		panic("ListForUser not configured")
	}
	return f.listUserFn(ctx, in)
}

func (f *fakeBookingService) CanModify(ctx context.Context, id uuid.UUID) (booking.Eligibility, error) {
	if f.canModifyFn == nil {
		panic("CanModify not configured")
	}
	return f.canModifyFn(ctx, id)
}

func (f *fakeBookingService) Policy() domain.BookingPolicy {
	return domain.DefaultBookingPolicy()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	testApptID = uuid.MustParse("00000000-0000-0000-0000-000000000010")
	testStart  = time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
)

func testAppointment() domain.Appointment {
	return domain.Appointment{
		ID:              testApptID,
		UserID:          "client-1",
		StylistID:       "stylist-1",
		DateTime:        testStart,
		EndTime:         testStart.Add(45 * time.Minute),
		DurationMinutes: 45,
		Status:          domain.StatusScheduled,
		Services: []domain.Service{
			{ID: "cut", Name: "Cut", DurationMinutes: 30, Price: decimal.NewFromInt(25)},
			{ID: "wash", Name: "Wash", DurationMinutes: 15, Price: decimal.RequireFromString("9.5")},
		},
	}
}

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}

	if got := idempotencyKey(context.Background()); got != "" {
		t.Fatalf("idempotencyKey = %q, want empty", got)
	}
}

func TestCreateAppointment_PassesInputAndIdempotencyKey(t *testing.T) {
	var got booking.CreateInput
	srv := NewBookingServer(&fakeBookingService{
		createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
			got = in
			return testAppointment(), nil
		},
	}, quietLogger())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "k1"))
	resp, err := srv.CreateAppointment(ctx, &CreateAppointmentRequest{
		UserID:     "client-1",
		StylistID:  "stylist-1",
		ServiceIDs: []string{"cut", "wash"},
		DateTime:   testStart,
	})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if got.IdempotencyKey != "k1" || got.UserID != "client-1" || len(got.ServiceIDs) != 2 || !got.DateTime.Equal(testStart) {
		t.Fatalf("input = %+v", got)
	}

	a := resp.Appointment
	if a.ID != testApptID.String() || a.Status != "SCHEDULED" || a.DurationMinutes != 45 {
		t.Fatalf("appointment = %+v", a)
	}
	if len(a.Services) != 2 || a.Services[1].Price != "9.50" {
		t.Fatalf("services = %+v", a.Services)
	}
}

func TestBookingServer_MapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{&booking.ValidationError{}, codes.InvalidArgument},
		{booking.ErrInvalidDate, codes.InvalidArgument},
		{availability.ErrInvalidRange, codes.InvalidArgument},
		{fmt.Errorf("stylist s9: %w", store.ErrNotFound), codes.NotFound},
		{store.ErrConflict, codes.FailedPrecondition},
		{store.ErrIdempotencyConflict, codes.FailedPrecondition},
		{booking.ErrInvalidTransition, codes.FailedPrecondition},
		{booking.ErrModificationWindowClosed, codes.FailedPrecondition},
		{errors.New("connection reset"), codes.Internal},
	}

	for _, tc := range cases {
		srv := NewBookingServer(&fakeBookingService{
			createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
				return domain.Appointment{}, tc.err
			},
		}, quietLogger())

		_, err := srv.CreateAppointment(context.Background(), &CreateAppointmentRequest{UserID: "client-1"})
		if status.Code(err) != tc.want {
			t.Fatalf("%v: code = %s, want %s", tc.err, status.Code(err), tc.want)
		}
		if tc.want == codes.Internal && status.Convert(err).Message() != "internal error" {
			t.Fatalf("internal error leaked: %q", status.Convert(err).Message())
		}
	}
}

func TestAppointmentRPCs_RejectInvalidUUID(t *testing.T) {
	srv := NewBookingServer(&fakeBookingService{}, quietLogger())
	ctx := context.Background()

	calls := map[string]func() error{
		"update": func() error {
			_, err := srv.UpdateAppointment(ctx, &UpdateAppointmentRequest{AppointmentID: "nope"})
			return err
		},
		"cancel": func() error {
			_, err := srv.CancelAppointment(ctx, &CancelAppointmentRequest{AppointmentID: "nope"})
			return err
		},
		"reschedule": func() error {
			_, err := srv.RequestReschedule(ctx, &RequestRescheduleRequest{AppointmentID: ""})
			return err
		},
		"get": func() error {
			_, err := srv.GetAppointment(ctx, &GetAppointmentRequest{AppointmentID: "123"})
			return err
		},
		"check": func() error {
			_, err := srv.CheckModifiable(ctx, &CheckModifiableRequest{AppointmentID: "x"})
			return err
		},
	}
	for name, call := range calls {
		if err := call(); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%s: code = %s, want %s", name, status.Code(err), codes.InvalidArgument)
		}
	}
}

func TestUpdateAppointment_NormalizesStatus(t *testing.T) {
	var got booking.UpdateInput
	srv := NewBookingServer(&fakeBookingService{
		updateFn: func(ctx context.Context, in booking.UpdateInput) (domain.Appointment, error) {
			got = in
			return testAppointment(), nil
		},
	}, quietLogger())

	st := " completed "
	if _, err := srv.UpdateAppointment(context.Background(), &UpdateAppointmentRequest{
		AppointmentID: testApptID.String(),
		Status:        &st,
	}); err != nil {
		t.Fatalf("UpdateAppointment error: %v", err)
	}
	if got.ID != testApptID || got.Status == nil || *got.Status != domain.StatusCompleted {
		t.Fatalf("input = %+v", got)
	}
	if got.DateTime != nil || got.StylistID != nil || got.ServiceIDs != nil {
		t.Fatalf("omitted fields must stay nil: %+v", got)
	}
}

func TestAppointmentRPCs_CarryInternalNotes(t *testing.T) {
	var (
		created booking.CreateInput
		updated booking.UpdateInput
	)
	srv := NewBookingServer(&fakeBookingService{
		createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
			created = in
			a := testAppointment()
			a.InternalNotes = in.InternalNotes
			return a, nil
		},
		updateFn: func(ctx context.Context, in booking.UpdateInput) (domain.Appointment, error) {
			updated = in
			return testAppointment(), nil
		},
	}, quietLogger())

	resp, err := srv.CreateAppointment(context.Background(), &CreateAppointmentRequest{
		UserID:        "client-1",
		StylistID:     "stylist-1",
		ServiceIDs:    []string{"cut"},
		DateTime:      testStart,
		InternalNotes: "patch test done",
	})
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}
	if created.InternalNotes != "patch test done" || resp.Appointment.InternalNotes != "patch test done" {
		t.Fatalf("create input %q, response %q", created.InternalNotes, resp.Appointment.InternalNotes)
	}

	internal := "late twice"
	if _, err := srv.UpdateAppointment(context.Background(), &UpdateAppointmentRequest{
		AppointmentID: testApptID.String(),
		InternalNotes: &internal,
	}); err != nil {
		t.Fatalf("UpdateAppointment error: %v", err)
	}
	if updated.InternalNotes == nil || *updated.InternalNotes != internal || updated.Notes != nil {
		t.Fatalf("update input = %+v", updated)
	}
}

func TestCancelAppointment_PassesActorAndReason(t *testing.T) {
	var got booking.CancelInput
	srv := NewBookingServer(&fakeBookingService{
		cancelFn: func(ctx context.Context, in booking.CancelInput) (domain.Appointment, error) {
			got = in
			a := testAppointment()
			a.Status = domain.StatusCancelled
			reason := in.Reason
			a.CancellationReason = &reason
			return a, nil
		},
	}, quietLogger())

	resp, err := srv.CancelAppointment(context.Background(), &CancelAppointmentRequest{
		AppointmentID: testApptID.String(),
		Reason:        "sick",
		Actor:         "client",
	})
	if err != nil {
		t.Fatalf("CancelAppointment error: %v", err)
	}
	if got.Actor != booking.ActorClient || got.Reason != "sick" {
		t.Fatalf("input = %+v", got)
	}
	if resp.Appointment.CancellationReason != "sick" || resp.Appointment.Status != "CANCELLED" {
		t.Fatalf("appointment = %+v", resp.Appointment)
	}
}

func TestListUserAppointments_UppercasesFilter(t *testing.T) {
	var got booking.ListForUserInput
	srv := NewBookingServer(&fakeBookingService{
		listUserFn: func(ctx context.Context, in booking.ListForUserInput) (booking.Page, error) {
			got = in
			return booking.Page{Items: []domain.Appointment{testAppointment()}, Total: 3, Page: 2, Limit: 1, TotalPages: 3}, nil
		},
	}, quietLogger())

	resp, err := srv.ListUserAppointments(context.Background(), &ListUserAppointmentsRequest{UserID: "client-1", Filter: "upcoming", Page: 2, Limit: 1})
	if err != nil {
		t.Fatalf("ListUserAppointments error: %v", err)
	}
	if got.Filter != booking.UserFilterUpcoming {
		t.Fatalf("filter = %q", got.Filter)
	}
	if resp.Total != 3 || resp.TotalPages != 3 || len(resp.Appointments) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestGetAvailableSlots_ReportsWorkingHours(t *testing.T) {
	srv := NewBookingServer(&fakeBookingService{
		slotsFn: func(ctx context.Context, in booking.SlotsInput) (availability.Result, error) {
			return availability.Result{
				Stylist:       domain.User{ID: in.StylistID},
				TotalDuration: 30 * time.Minute,
				Slots: []availability.Slot{
					{Start: testStart, End: testStart.Add(30 * time.Minute), DurationMinutes: 30},
				},
			}, nil
		},
	}, quietLogger())

	resp, err := srv.GetAvailableSlots(context.Background(), &GetAvailableSlotsRequest{StylistID: "stylist-1", ServiceIDs: []string{"cut"}})
	if err != nil {
		t.Fatalf("GetAvailableSlots error: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].StylistID != "stylist-1" || resp.TotalDurationMinutes != 30 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.WorkingHours != domain.DefaultBookingPolicy().WorkingHoursLabel() {
		t.Fatalf("working hours = %q", resp.WorkingHours)
	}
}

func TestCheckModifiable_ReturnsDeadline(t *testing.T) {
	srv := NewBookingServer(&fakeBookingService{
		canModifyFn: func(ctx context.Context, id uuid.UUID) (booking.Eligibility, error) {
			return booking.Eligibility{AppointmentID: id, DateTime: testStart, Deadline: testStart.Add(-24 * time.Hour), CanModify: true}, nil
		},
	}, quietLogger())

	resp, err := srv.CheckModifiable(context.Background(), &CheckModifiableRequest{AppointmentID: testApptID.String()})
	if err != nil {
		t.Fatalf("CheckModifiable error: %v", err)
	}
	if !resp.CanModify || !resp.Deadline.Equal(testStart.Add(-24*time.Hour)) || resp.AppointmentID != testApptID.String() {
		t.Fatalf("resp = %+v", resp)
	}
}
