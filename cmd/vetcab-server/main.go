package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vetcab/backend/internal/config"
	"vetcab/backend/internal/service/appointments"
	"vetcab/backend/internal/store/postgres"
	"vetcab/backend/internal/telemetry"
	grpcTransport "vetcab/backend/internal/transport/grpc"
	"vetcab/backend/internal/transport/httpapi"
	"vetcab/backend/internal/transport/httpx"
)

const serviceName = "vetcab-server"

func main() {
	log := newLogger("info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("timezone", cfg.Location.String()),
		slog.String("log_level", cfg.LogLevel),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	db, err := postgres.Open(openCtx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	cancel()
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	readyChecks := []httpapi.ReadyCheck{{Name: "database", Check: postgres.ReadyCheck(db)}}
	probes := []grpcTransport.Probe{{Name: "database", Check: postgres.ReadyCheck(db)}}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		redisCheck := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		readyChecks = append(readyChecks, httpapi.ReadyCheck{Name: "redis", Check: redisCheck})
		probes = append(probes, grpcTransport.Probe{Name: "redis", Check: redisCheck})
	}

	repo := postgres.NewAppointmentRepo(db)
	svc := appointments.NewService(repo, appointments.WithLocation(cfg.Location))

	router := httpapi.NewRouter(httpapi.NewAppointmentsHandler(svc, log), readyChecks...)
	handler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(log.With(slog.String("component", "http"))),
		httpx.WithCORS(httpx.DefaultCORSPolicy(cfg.CORSAllowedOrigins)),
		httpx.WithRateLimit(newLimiter(log, cfg, rdb), log, true),
		httpx.WithBodyLimit(cfg.HTTPBodyLimitBytes),
		httpx.WithTimeout(cfg.HTTPRequestTimeout),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(handler, "vetcab.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcTransport.NewServer(log, grpcTransport.Options{RequestTimeout: cfg.GRPCRequestTimeout}, probes...)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(ctx, lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("server failed", slog.Any("err", runErr))
	}

	shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
	grpcServer.Shutdown(cfg.ShutdownTimeout)
	return runErr
}

func newLimiter(log *slog.Logger, cfg config.Config, rdb *redis.Client) httpx.Limiter {
	if !cfg.RateLimitEnabled {
		return nil
	}
	if rdb != nil {
		log.Info("rate limiting enabled", slog.String("backend", "redis"), slog.Int("requests", cfg.RateLimitRequests), slog.Duration("window", cfg.RateLimitWindow))
		return httpx.NewRedisLimiter(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow, "vetcab:rl")
	}
	log.Info("rate limiting enabled", slog.String("backend", "memory"), slog.Int("requests", cfg.RateLimitRequests), slog.Duration("window", cfg.RateLimitWindow))
	return httpx.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

func shutdownHTTP(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", serviceName),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
