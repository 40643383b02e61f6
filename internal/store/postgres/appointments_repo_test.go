package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/store"
)

func TestMapWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "overlap exclusion",
			err:  &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"},
			want: store.ErrConflict,
		},
		{
			name: "unknown cabinet",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "appointments_cabinet_id_fkey"},
			want: store.ErrCabinetNotFound,
		},
		{
			name: "unknown creator",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "appointments_created_by_fkey"},
			want: store.ErrUserNotFound,
		},
		{
			name: "unknown updater",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "appointments_updated_by_fkey"},
			want: store.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapWriteError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("mapWriteError = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("other pg errors are wrapped", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "appointments_time_order"}
		got := mapWriteError(pgErr)
		var unwrapped *pgconn.PgError
		if !errors.As(got, &unwrapped) {
			t.Fatalf("expected wrapped *pgconn.PgError, got %T", got)
		}
		if errors.Is(got, store.ErrConflict) {
			t.Fatalf("check violation must not map to conflict")
		}
	})

	t.Run("non pg errors pass through", func(t *testing.T) {
		plain := errors.New("boom")
		if got := mapWriteError(plain); got != plain {
			t.Fatalf("mapWriteError = %v, want %v", got, plain)
		}
	})
}

func TestCabinetLockKey(t *testing.T) {
	if got := cabinetLockKey(42); got != "cabinet:42" {
		t.Fatalf("cabinetLockKey = %q, want %q", got, "cabinet:42")
	}
}

func TestWritableCopyDropsSummaries(t *testing.T) {
	in := domain.Appointment{
		Title:   "t",
		Creator: &domain.UserSummary{ID: 1},
		Updater: &domain.UserSummary{ID: 2},
		Cabinet: &domain.CabinetSummary{ID: 3},
	}
	out := writableCopy(in)
	if out.Creator != nil || out.Updater != nil || out.Cabinet != nil {
		t.Fatalf("expected summaries to be dropped, got %+v", out)
	}
	if in.Creator == nil {
		t.Fatalf("input must not be modified")
	}
}
