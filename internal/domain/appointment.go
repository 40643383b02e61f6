package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentType string

const (
	AppointmentTypeAppointment AppointmentType = "appointment"
	AppointmentTypeBlocked     AppointmentType = "blocked"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentTypeAppointment, AppointmentTypeBlocked:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is a booked or blocked window on a cabinet's timeline.
// Client contact fields are a snapshot, not a reference to a client record.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID          uuid.UUID         `bun:"id,pk,type:uuid"`
	Title       string            `bun:"title,notnull"`
	StartTime   time.Time         `bun:"start_time,notnull"`
	EndTime     time.Time         `bun:"end_time,notnull"`
	Type        AppointmentType   `bun:"type,notnull"`
	Status      AppointmentStatus `bun:"status,notnull"`
	ClientName  *string           `bun:"client_name"`
	ClientPhone *string           `bun:"client_phone"`
	ClientEmail *string           `bun:"client_email"`
	Reason      *string           `bun:"reason"`
	Notes       *string           `bun:"notes"`
	CabinetID   int64             `bun:"cabinet_id,notnull"`
	CreatedBy   *int64            `bun:"created_by"`
	UpdatedBy   *int64            `bun:"updated_by"`
	CreatedAt   time.Time         `bun:"created_at,notnull"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull"`

	Creator *UserSummary    `bun:"rel:belongs-to,join:created_by=id"`
	Updater *UserSummary    `bun:"rel:belongs-to,join:updated_by=id"`
	Cabinet *CabinetSummary `bun:"rel:belongs-to,join:cabinet_id=id"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Window() Window {
	return Window{Start: a.StartTime, End: a.EndTime}
}

// SameContent reports whether two appointments carry the same user-supplied
// fields. Server-managed fields (id, timestamps, joined summaries) are ignored.
func (a Appointment) SameContent(b Appointment) bool {
	return a.Title == b.Title &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime) &&
		a.Type == b.Type &&
		a.Status == b.Status &&
		equalPtr(a.ClientName, b.ClientName) &&
		equalPtr(a.ClientPhone, b.ClientPhone) &&
		equalPtr(a.ClientEmail, b.ClientEmail) &&
		equalPtr(a.Reason, b.Reason) &&
		equalPtr(a.Notes, b.Notes) &&
		a.CabinetID == b.CabinetID &&
		equalPtr(a.CreatedBy, b.CreatedBy)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
