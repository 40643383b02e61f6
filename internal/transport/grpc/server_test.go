package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestDefaultRequestTimeoutInterceptor_AddsDeadline(t *testing.T) {
	interceptor := defaultRequestTimeoutInterceptor(50 * time.Millisecond)

	var deadline time.Time
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		var ok bool
		deadline, ok = ctx.Deadline()
		if !ok {
			t.Fatalf("expected deadline")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if time.Until(deadline) > 50*time.Millisecond {
		t.Fatalf("deadline too far in the future: %v", deadline)
	}
}

func TestDefaultRequestTimeoutInterceptor_KeepsCallerDeadline(t *testing.T) {
	interceptor := defaultRequestTimeoutInterceptor(time.Hour)

	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want, _ := parent.Deadline()

	_, _ = interceptor(parent, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		got, _ := ctx.Deadline()
		if !got.Equal(want) {
			t.Fatalf("deadline = %v, want %v", got, want)
		}
		return nil, nil
	})
}

func TestProbeStatus(t *testing.T) {
	var dbErr error
	s := NewServer(discardLogger(), Options{}, Probe{Name: "database", Check: func(context.Context) error { return dbErr }})

	if got := s.probe(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", got)
	}
	dbErr = errors.New("down")
	if got := s.probe(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", got)
	}
}

func TestHealthCheckOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := NewServer(discardLogger(), Options{ProbeInterval: time.Hour}, Probe{Name: "ok", Check: func(context.Context) error { return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, lis) }()
	defer s.Shutdown(time.Second)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: AppointmentsService})
		if err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("health check did not report SERVING: resp=%v err=%v", resp, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
