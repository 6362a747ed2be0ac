package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/booking"
	"salonbook/backend/internal/store"
)

func startBufServer(t *testing.T, svc bookingService) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RequestIDInterceptor(),
		DefaultTimeoutInterceptor(time.Second),
	))
	RegisterBookingServiceServer(srv, NewBookingServer(svc, quietLogger()))
	healthpb.RegisterHealthServer(srv, health.NewServer())

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRoundTrip_CreateAppointmentOverJSON(t *testing.T) {
	var (
		gotKey      string
		gotDeadline bool
	)
	conn := startBufServer(t, &fakeBookingService{
		createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
			gotKey = in.IdempotencyKey
			_, gotDeadline = ctx.Deadline()
			a := testAppointment()
			a.DateTime = in.DateTime
			return a, nil
		},
	})
	client := NewBookingServiceClient(conn)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "idempotency-key", "retry-1")
	var header metadata.MD
	resp, err := client.CreateAppointment(ctx, &CreateAppointmentRequest{
		UserID:     "client-1",
		StylistID:  "stylist-1",
		ServiceIDs: []string{"cut", "wash"},
		DateTime:   testStart,
	}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("CreateAppointment error: %v", err)
	}

	if gotKey != "retry-1" {
		t.Fatalf("idempotency key = %q", gotKey)
	}
	if !gotDeadline {
		t.Fatalf("handler ran without a deadline")
	}
	if ids := header.Get(RequestIDMetadataKey); len(ids) != 1 || ids[0] == "" {
		t.Fatalf("request id header = %v", ids)
	}
	if resp.Appointment == nil || resp.Appointment.ID != testApptID.String() || !resp.Appointment.DateTime.Equal(testStart) {
		t.Fatalf("appointment = %+v", resp.Appointment)
	}
	if len(resp.Appointment.Services) != 2 || resp.Appointment.Services[0].Name != "Cut" {
		t.Fatalf("services = %+v", resp.Appointment.Services)
	}
}

func TestRoundTrip_StatusCodesSurvive(t *testing.T) {
	conn := startBufServer(t, &fakeBookingService{
		createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrConflict
		},
	})
	client := NewBookingServiceClient(conn)

	_, err := client.CreateAppointment(context.Background(), &CreateAppointmentRequest{UserID: "client-1"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.FailedPrecondition)
	}
}

func TestRoundTrip_MalformedBodyIsInvalidArgument(t *testing.T) {
	conn := startBufServer(t, &fakeBookingService{
		createFn: func(ctx context.Context, in booking.CreateInput) (domain.Appointment, error) {
			t.Errorf("service reached with an undecodable body")
			return domain.Appointment{}, nil
		},
	})

	body := json.RawMessage(`{"user_id":"client-1","stylist_id":"stylist-1","date_time":"tomorrow at noon"}`)
	var resp AppointmentResponse
	err := conn.Invoke(context.Background(), "/"+BookingServiceName+"/CreateAppointment", body, &resp, grpc.CallContentSubtype(CodecName))

	st, _ := status.FromError(err)
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", st.Code(), codes.InvalidArgument)
	}
	if st.Message() != "request body is invalid" {
		t.Fatalf("message = %q", st.Message())
	}
}

func TestRoundTrip_HealthCheckOverJSONCodec(t *testing.T) {
	conn := startBufServer(t, &fakeBookingService{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{}, grpc.CallContentSubtype(CodecName))
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s", resp.GetStatus())
	}
}
