package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id = %q / %q, want abc-123", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen != rec.Header().Get(RequestIDHeader) {
		t.Fatalf("generated request id = %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestWithAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	}), WithRequestID, WithAccessLog(log))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/appointments", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"http request"`, `"status":201`, `"bytes":4`, `"path":"/appointments"`, `"request_id":"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}

func TestWithBodyLimit(t *testing.T) {
	var readErr error
	h := WithBodyLimit(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("read error = %v, want *http.MaxBytesError", readErr)
	}
	if WithBodyLimit(0) != nil {
		t.Fatalf("zero limit should disable the middleware")
	}
}

func TestWithTimeout(t *testing.T) {
	h := WithTimeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestWithCORS(t *testing.T) {
	h := Chain(okHandler(), WithCORS(DefaultCORSPolicy([]string{"https://clinic.example"})))

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
		req.Header.Set("Origin", "https://clinic.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://clinic.example" {
			t.Fatalf("allow origin = %q", got)
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key") {
			t.Fatalf("allow headers = %q", rec.Header().Get("Access-Control-Allow-Headers"))
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Fatalf("unexpected CORS header for unknown origin")
		}
		if rec.Body.String() != "ok" {
			t.Fatalf("body = %q, want ok", rec.Body.String())
		}
	})
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(context.Background(), "1.2.3.4")
		if err != nil || ok != want {
			t.Fatalf("call %d: Allow = %v, %v, want %v", i, ok, err, want)
		}
	}
	if ok, _ := l.Allow(context.Background(), "5.6.7.8"); !ok {
		t.Fatalf("other clients must have their own window")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := l.Allow(context.Background(), "1.2.3.4"); !ok {
		t.Fatalf("window should reset")
	}
}

type limiterFunc func(ctx context.Context, key string) (bool, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (bool, error) { return f(ctx, key) }

func TestWithRateLimit(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	var gotKey string
	deny := limiterFunc(func(ctx context.Context, key string) (bool, error) {
		gotKey = key
		return false, nil
	})
	broken := limiterFunc(func(ctx context.Context, key string) (bool, error) {
		return false, errors.New("redis down")
	})

	tests := []struct {
		name     string
		limiter  Limiter
		failOpen bool
		want     int
	}{
		{name: "over budget", limiter: deny, want: http.StatusTooManyRequests},
		{name: "limiter error fail closed", limiter: broken, want: http.StatusServiceUnavailable},
		{name: "limiter error fail open", limiter: broken, failOpen: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Chain(okHandler(), WithRateLimit(tt.limiter, log, tt.failOpen))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if gotKey != "9.9.9.9" {
		t.Fatalf("client key = %q, want first forwarded address", gotKey)
	}
}

func TestScriptCount(t *testing.T) {
	if n, err := scriptCount(int64(3)); err != nil || n != 3 {
		t.Fatalf("scriptCount(int64) = %d, %v", n, err)
	}
	if n, err := scriptCount("7"); err != nil || n != 7 {
		t.Fatalf("scriptCount(string) = %d, %v", n, err)
	}
	if _, err := scriptCount(1.5); err == nil {
		t.Fatalf("expected error for unexpected type")
	}
}
