package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/store"
)

const (
	overlapConstraint     = "appointments_no_overlap"
	cabinetFKConstraint   = "appointments_cabinet_id_fkey"
	createdByFKConstraint = "appointments_created_by_fkey"
	updatedByFKConstraint = "appointments_updated_by_fkey"

	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

var _ store.AppointmentRepository = (*AppointmentRepo)(nil)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type timelineTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) InCabinetTransaction(ctx context.Context, cabinetID int64, fn func(ctx context.Context, tx store.TimelineTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCabinetTimeline(ctx, tx, cabinetID); err != nil {
			return err
		}
		return fn(ctx, timelineTx{tx: tx})
	})
}

func lockCabinetTimeline(ctx context.Context, tx bun.Tx, cabinetID int64) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", cabinetLockKey(cabinetID)).Exec(ctx)
	return err
}

func cabinetLockKey(cabinetID int64) string {
	return "cabinet:" + strconv.FormatInt(cabinetID, 10)
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *AppointmentRepo) FindDetailsByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Relation("Creator").
		Relation("Updater").
		Relation("Cabinet").
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r *AppointmentRepo) FindByCabinet(ctx context.Context, q store.CabinetQuery) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	sel := r.db.NewSelect().
		Model(&rows).
		Relation("Creator").
		Where("a.cabinet_id = ?", q.CabinetID)

	if q.From != nil {
		sel = sel.Where("a.start_time >= ?", *q.From)
	}
	if q.To != nil {
		if q.ToInclusive {
			sel = sel.Where("a.start_time <= ?", *q.To)
		} else {
			sel = sel.Where("a.start_time < ?", *q.To)
		}
	}
	if q.Type != nil {
		sel = sel.Where("a.type = ?", *q.Type)
	}

	if err := sel.OrderExpr("a.start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r timelineTx) FindConflicting(ctx context.Context, cabinetID int64, window domain.Window, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	sel := r.tx.NewSelect().
		Model(&rows).
		Where("a.cabinet_id = ?", cabinetID).
		Where("a.start_time < ?", window.End).
		Where("a.end_time > ?", window.Start)
	if excludeID != uuid.Nil {
		sel = sel.Where("a.id <> ?", excludeID)
	}
	if err := sel.OrderExpr("a.start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r timelineTx) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("a.id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, notFound(err)
	}
	return a, nil
}

func (r timelineTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := writableCopy(appt)

	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 1 {
		return m, nil
	}

	// The id was already taken: only an identical replay of the same
	// idempotent request may reuse it.
	existing, err := r.FindByID(ctx, m.ID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !existing.SameContent(appt) {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func (r timelineTx) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := writableCopy(appt)

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column(
			"title", "start_time", "end_time", "type", "status",
			"client_name", "client_phone", "client_email", "reason", "notes",
			"updated_by", "updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

// writableCopy drops joined summaries so they never reach a write query.
func writableCopy(appt domain.Appointment) domain.Appointment {
	m := appt
	m.Creator = nil
	m.Updater = nil
	m.Cabinet = nil
	return m
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgExclusionViolation:
		if pgErr.ConstraintName == overlapConstraint {
			return store.ErrConflict
		}
	case pgForeignKeyViolation:
		switch pgErr.ConstraintName {
		case cabinetFKConstraint:
			return store.ErrCabinetNotFound
		case createdByFKConstraint, updatedByFKConstraint:
			return store.ErrUserNotFound
		}
	}
	return fmt.Errorf("write appointment: %w", err)
}
