// Package grpc serves the gRPC health protocol for the appointments API so
// that orchestrators and service meshes can probe it.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// AppointmentsService is the service name reported alongside the overall
// server status.
const AppointmentsService = "vetcab.appointments.v1.Appointments"

const (
	defaultRequestTimeout = 10 * time.Second
	defaultProbeInterval  = 10 * time.Second
	probeTimeout          = 2 * time.Second
)

// Probe is a named dependency check; any failing probe marks the server as
// not serving.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

type Options struct {
	RequestTimeout time.Duration
	ProbeInterval  time.Duration
}

type Server struct {
	srv      *grpc.Server
	health   *health.Server
	probes   []Probe
	interval time.Duration
	log      *slog.Logger
}

func NewServer(log *slog.Logger, opts Options, probes ...Probe) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.health"))

	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			defaultRequestTimeoutInterceptor(opts.RequestTimeout),
			loggingInterceptor(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{srv: srv, health: hs, probes: probes, interval: interval, log: log}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve probes dependencies in the background and serves on lis until the
// server is stopped or ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.probe(probeCtx)
	go s.probeLoop(probeCtx)

	err := s.srv.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *Server) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe runs every check and publishes the combined status.
func (s *Server) probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, p := range s.probes {
		if p.Check == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			s.log.Warn("health probe failed", slog.String("probe", p.Name), slog.Any("err", err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
	return status
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(AppointmentsService, status)
}

// Shutdown drains in-flight calls and forces a stop after timeout.
func (s *Server) Shutdown(timeout time.Duration) {
	s.log.Info("shutting down grpc server", slog.Duration("timeout", timeout))
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		s.log.Info("grpc server stopped")
	case <-timer.C:
		s.log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.srv.Stop()
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			slog.String("rpc", info.FullMethod),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if err != nil {
			log.Warn("rpc failed", append(attrs, slog.Any("err", err))...)
			return resp, err
		}
		log.Debug("rpc handled", attrs...)
		return resp, nil
	}
}
