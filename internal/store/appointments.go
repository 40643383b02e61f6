package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vetcab/backend/internal/domain"
)

// CabinetQuery filters a cabinet's appointments by start time and type.
// From is inclusive. To is inclusive when ToInclusive is set, exclusive otherwise.
type CabinetQuery struct {
	CabinetID   int64
	From        *time.Time
	To          *time.Time
	ToInclusive bool
	Type        *domain.AppointmentType
}

type AppointmentRepository interface {
	// InCabinetTransaction runs fn in a transaction that holds the cabinet's
	// timeline lock, so a conflict check and the write that follows it see
	// the same set of appointments.
	InCabinetTransaction(ctx context.Context, cabinetID int64, fn func(ctx context.Context, tx TimelineTx) error) error

	FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	FindDetailsByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	FindByCabinet(ctx context.Context, q CabinetQuery) ([]domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TimelineTx interface {
	FindConflicting(ctx context.Context, cabinetID int64, window domain.Window, excludeID uuid.UUID) ([]domain.Appointment, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
