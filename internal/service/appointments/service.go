package appointments

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/store"
)

type Service struct {
	repo store.AppointmentRepository
	loc  *time.Location
	now  func() time.Time
}

type Option func(*Service)

// WithLocation sets the location whose calendar day defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo store.AppointmentRepository, opts ...Option) *Service {
	s := &Service{repo: repo, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

type CreateInput struct {
	Title       string
	StartTime   time.Time
	EndTime     time.Time
	CabinetID   int64
	Type        domain.AppointmentType
	Status      domain.AppointmentStatus
	ClientName  *string
	ClientPhone *string
	ClientEmail *string
	Reason      *string
	Notes       *string
	CreatedBy   *int64

	IdempotencyKey string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	title := strings.TrimSpace(in.Title)
	if err := missingFieldsError(map[string]bool{
		FieldTitle:     title == "",
		FieldStartTime: in.StartTime.IsZero(),
		FieldEndTime:   in.EndTime.IsZero(),
		FieldCabinetID: in.CabinetID == 0,
	}); err != nil {
		return domain.Appointment{}, err
	}
	if in.CabinetID < 0 {
		return domain.Appointment{}, validationError("cabinetId must be positive")
	}

	start := storedInstant(in.StartTime)
	end := storedInstant(in.EndTime)
	if !end.After(start) {
		return domain.Appointment{}, validationError("endTime must be after startTime")
	}

	typ := in.Type
	if typ == "" {
		typ = domain.AppointmentTypeAppointment
	}
	if !typ.Valid() {
		return domain.Appointment{}, validationError("invalid type")
	}
	status := in.Status
	if status == "" {
		status = domain.AppointmentStatusScheduled
	}
	if !status.Valid() {
		return domain.Appointment{}, validationError("invalid status")
	}

	appt := domain.Appointment{
		Title:       title,
		StartTime:   start,
		EndTime:     end,
		Type:        typ,
		Status:      status,
		ClientName:  in.ClientName,
		ClientPhone: in.ClientPhone,
		ClientEmail: in.ClientEmail,
		Reason:      in.Reason,
		Notes:       in.Notes,
		CabinetID:   in.CabinetID,
		CreatedBy:   in.CreatedBy,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("vetcab:create_appointment:"+strconv.FormatInt(in.CabinetID, 10)+":"+key))
	}

	var out domain.Appointment
	err := s.repo.InCabinetTransaction(ctx, appt.CabinetID, func(ctx context.Context, tx store.TimelineTx) error {
		// A pinned id is excluded so an idempotent replay does not collide
		// with the appointment it created the first time.
		conflicts, err := tx.FindConflicting(ctx, appt.CabinetID, appt.Window(), appt.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return conflictError(conflicts[0])
		}

		a, err := tx.Insert(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// storedInstant matches the microsecond precision of timestamptz.
func storedInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Change is a field of an update request. An unset Change keeps the stored
// value; a set Change with a nil Value clears a nullable field.
type Change[T any] struct {
	Set   bool
	Value *T
}

func SetTo[T any](v T) Change[T] {
	return Change[T]{Set: true, Value: &v}
}

func Cleared[T any]() Change[T] {
	return Change[T]{Set: true}
}

func (c Change[T]) apply(current *T) *T {
	if !c.Set {
		return current
	}
	return c.Value
}

// required resolves a change to a non-nullable field.
func (c Change[T]) required(current T, field string) (T, error) {
	if !c.Set {
		return current, nil
	}
	if c.Value == nil {
		return current, validationError(field + " cannot be cleared")
	}
	return *c.Value, nil
}

type UpdateInput struct {
	Title       Change[string]
	StartTime   Change[time.Time]
	EndTime     Change[time.Time]
	Type        Change[domain.AppointmentType]
	Status      Change[domain.AppointmentStatus]
	ClientName  Change[string]
	ClientPhone Change[string]
	ClientEmail Change[string]
	Reason      Change[string]
	Notes       Change[string]

	// UpdatedBy records the acting user; nil keeps the previous value.
	UpdatedBy *int64
}

func (in UpdateInput) timesChanged() bool {
	return in.StartTime.Set || in.EndTime.Set
}

func (in UpdateInput) merge(current domain.Appointment) (domain.Appointment, error) {
	out := current

	title, err := in.Title.required(current.Title, FieldTitle)
	if err != nil {
		return domain.Appointment{}, err
	}
	out.Title = strings.TrimSpace(title)
	if out.Title == "" {
		return domain.Appointment{}, validationError("title cannot be empty")
	}

	start, err := in.StartTime.required(current.StartTime, FieldStartTime)
	if err != nil {
		return domain.Appointment{}, err
	}
	end, err := in.EndTime.required(current.EndTime, FieldEndTime)
	if err != nil {
		return domain.Appointment{}, err
	}
	out.StartTime = storedInstant(start)
	out.EndTime = storedInstant(end)
	if !out.EndTime.After(out.StartTime) {
		return domain.Appointment{}, validationError("endTime must be after startTime")
	}

	if out.Type, err = in.Type.required(current.Type, "type"); err != nil {
		return domain.Appointment{}, err
	}
	if !out.Type.Valid() {
		return domain.Appointment{}, validationError("invalid type")
	}
	if out.Status, err = in.Status.required(current.Status, "status"); err != nil {
		return domain.Appointment{}, err
	}
	if !out.Status.Valid() {
		return domain.Appointment{}, validationError("invalid status")
	}

	out.ClientName = in.ClientName.apply(current.ClientName)
	out.ClientPhone = in.ClientPhone.apply(current.ClientPhone)
	out.ClientEmail = in.ClientEmail.apply(current.ClientEmail)
	out.Reason = in.Reason.apply(current.Reason)
	out.Notes = in.Notes.apply(current.Notes)
	if in.UpdatedBy != nil {
		out.UpdatedBy = in.UpdatedBy
	}

	return out, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}

	// The cabinet never changes on update, so it can be read before the
	// cabinet lock is taken.
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = s.repo.InCabinetTransaction(ctx, current.CabinetID, func(ctx context.Context, tx store.TimelineTx) error {
		current, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}

		merged, err := in.merge(current)
		if err != nil {
			return err
		}

		if in.timesChanged() {
			conflicts, err := tx.FindConflicting(ctx, merged.CabinetID, merged.Window(), merged.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return conflictError(conflicts[0])
			}
		}

		a, err := tx.Update(ctx, merged)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return validationError("appointment id is required")
	}
	return s.repo.Delete(ctx, id)
}

// Get returns the appointment with its creator, updater and cabinet summaries.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	return s.repo.FindDetailsByID(ctx, id)
}

// ListFilter narrows a cabinet listing by start time and type. From is
// inclusive; To is inclusive when ToInclusive is set.
type ListFilter struct {
	From        *time.Time
	To          *time.Time
	ToInclusive bool
	Type        *domain.AppointmentType
}

func (f ListFilter) rangeValid() bool {
	if f.ToInclusive {
		return !f.From.After(*f.To)
	}
	return f.From.Before(*f.To)
}

func (s *Service) ListByCabinet(ctx context.Context, cabinetID int64, f ListFilter) ([]domain.Appointment, error) {
	if cabinetID <= 0 {
		return nil, validationError("cabinetId must be positive")
	}
	if f.From != nil && f.To != nil && !f.rangeValid() {
		return nil, validationError("startDate must not be after endDate")
	}
	if f.Type != nil && !f.Type.Valid() {
		return nil, validationError("invalid type")
	}

	return s.repo.FindByCabinet(ctx, store.CabinetQuery{
		CabinetID:   cabinetID,
		From:        f.From,
		To:          f.To,
		ToInclusive: f.ToInclusive,
		Type:        f.Type,
	})
}

// ListToday returns the cabinet's appointments starting between local
// midnight today and local midnight tomorrow.
func (s *Service) ListToday(ctx context.Context, cabinetID int64) ([]domain.Appointment, error) {
	if cabinetID <= 0 {
		return nil, validationError("cabinetId must be positive")
	}

	day := domain.DayWindow(s.now(), s.loc)
	return s.repo.FindByCabinet(ctx, store.CabinetQuery{
		CabinetID: cabinetID,
		From:      &day.Start,
		To:        &day.End,
	})
}
