package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/" + BookingServiceName + "/GetAppointment"}

func TestRequestIDInterceptor_KeepsIncomingID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-42"))

	var got string
	_, err := RequestIDInterceptor()(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		got = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if got != "req-42" {
		t.Fatalf("request id = %q, want %q", got, "req-42")
	}
}

func TestRequestIDInterceptor_GeneratesID(t *testing.T) {
	var got string
	_, _ = RequestIDInterceptor()(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		got = RequestIDFromContext(ctx)
		return nil, nil
	})
	if got == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestRateLimitInterceptor_RejectsBeyondBurst(t *testing.T) {
	limit := RateLimitInterceptor(0.001, 1, quietLogger())
	ok := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	if _, err := limit(context.Background(), nil, testInfo, ok); err != nil {
		t.Fatalf("first call error: %v", err)
	}
	_, err := limit(context.Background(), nil, testInfo, ok)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.ResourceExhausted)
	}
}

func TestRateLimitInterceptor_DisabledPassesThrough(t *testing.T) {
	limit := RateLimitInterceptor(0, 0, quietLogger())
	for i := 0; i < 100; i++ {
		if _, err := limit(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) { return nil, nil }); err != nil {
			t.Fatalf("call %d error: %v", i, err)
		}
	}
}

func TestDefaultTimeoutInterceptor_KeepsCallerDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Hour)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	_, _ = DefaultTimeoutInterceptor(time.Second)(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		got, ok := ctx.Deadline()
		if !ok || !got.Equal(deadline) {
			t.Fatalf("deadline = %v, want %v", got, deadline)
		}
		return nil, nil
	})

	_, _ = DefaultTimeoutInterceptor(time.Second)(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		got, ok := ctx.Deadline()
		if !ok || time.Until(got) > time.Second {
			t.Fatalf("default deadline = %v", got)
		}
		return nil, nil
	})
}
