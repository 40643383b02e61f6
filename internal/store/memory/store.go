// Package memory is an in-process implementation of the appointment store.
// It mirrors the Postgres adapter's constraints (cabinet/user references,
// per-cabinet non-overlap, idempotent id reuse) and is used by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/store"
)

var _ store.AppointmentRepository = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]domain.Appointment
	cabinets     map[int64]domain.CabinetSummary
	users        map[int64]domain.UserSummary
	now          func() time.Time
}

func New() *Store {
	return &Store{
		appointments: map[uuid.UUID]domain.Appointment{},
		cabinets:     map[int64]domain.CabinetSummary{},
		users:        map[int64]domain.UserSummary{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) AddCabinet(c domain.CabinetSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cabinets[c.ID] = c
}

func (s *Store) AddUser(u domain.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// All returns every stored appointment ordered by cabinet and start time.
func (s *Store) All() []domain.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0, len(s.appointments))
	for _, a := range s.appointments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CabinetID != out[j].CabinetID {
			return out[i].CabinetID < out[j].CabinetID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// InCabinetTransaction serializes all transactions on the store. Writes are
// staged on a copy and become visible only if fn returns nil.
func (s *Store) InCabinetTransaction(ctx context.Context, cabinetID int64, fn func(ctx context.Context, tx store.TimelineTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	staged := make(map[uuid.UUID]domain.Appointment, len(s.appointments))
	for id, a := range s.appointments {
		staged[id] = a
	}

	tx := &timelineTx{store: s, rows: staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.appointments = staged
	return nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) FindDetailsByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	a.Creator = s.userSummary(a.CreatedBy)
	a.Updater = s.userSummary(a.UpdatedBy)
	if c, ok := s.cabinets[a.CabinetID]; ok {
		a.Cabinet = &c
	}
	return a, nil
}

func (s *Store) FindByCabinet(ctx context.Context, q store.CabinetQuery) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0)
	for _, a := range s.appointments {
		if a.CabinetID != q.CabinetID {
			continue
		}
		if q.From != nil && a.StartTime.Before(*q.From) {
			continue
		}
		if q.To != nil {
			if q.ToInclusive && a.StartTime.After(*q.To) {
				continue
			}
			if !q.ToInclusive && !a.StartTime.Before(*q.To) {
				continue
			}
		}
		if q.Type != nil && a.Type != *q.Type {
			continue
		}
		a.Creator = s.userSummary(a.CreatedBy)
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *Store) userSummary(id *int64) *domain.UserSummary {
	if id == nil {
		return nil
	}
	u, ok := s.users[*id]
	if !ok {
		return nil
	}
	return &u
}

type timelineTx struct {
	store *Store
	rows  map[uuid.UUID]domain.Appointment
}

func (t *timelineTx) FindConflicting(ctx context.Context, cabinetID int64, window domain.Window, excludeID uuid.UUID) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0)
	for _, a := range t.rows {
		if a.CabinetID != cabinetID || a.ID == excludeID {
			continue
		}
		if a.Window().Overlaps(window) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *timelineTx) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.rows[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *timelineTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID != uuid.Nil {
		if existing, ok := t.rows[appt.ID]; ok {
			if !existing.SameContent(appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	}
	if err := t.checkConstraints(appt); err != nil {
		return domain.Appointment{}, err
	}

	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	now := t.store.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Creator, appt.Updater, appt.Cabinet = nil, nil, nil

	t.rows[appt.ID] = appt
	return appt, nil
}

func (t *timelineTx) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, ok := t.rows[appt.ID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.CabinetID = existing.CabinetID
	appt.CreatedBy = existing.CreatedBy
	if err := t.checkConstraints(appt); err != nil {
		return domain.Appointment{}, err
	}

	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = t.store.now()
	appt.Creator, appt.Updater, appt.Cabinet = nil, nil, nil

	t.rows[appt.ID] = appt
	return appt, nil
}

// checkConstraints enforces what the database schema enforces: valid
// references and no overlap within a cabinet.
func (t *timelineTx) checkConstraints(appt domain.Appointment) error {
	if _, ok := t.store.cabinets[appt.CabinetID]; !ok {
		return store.ErrCabinetNotFound
	}
	for _, ref := range []*int64{appt.CreatedBy, appt.UpdatedBy} {
		if ref == nil {
			continue
		}
		if _, ok := t.store.users[*ref]; !ok {
			return store.ErrUserNotFound
		}
	}
	for _, a := range t.rows {
		if a.CabinetID == appt.CabinetID && a.ID != appt.ID && a.Window().Overlaps(appt.Window()) {
			return store.ErrConflict
		}
	}
	return nil
}

func sortByStart(rows []domain.Appointment) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StartTime.Before(rows[j].StartTime)
	})
}
