// Package httpapi exposes the appointment service over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/service/appointments"
	"vetcab/backend/internal/transport/httpx"
)

const (
	idempotencyKeyHeader  = "Idempotency-Key"
	xIdempotencyKeyHeader = "X-Idempotency-Key"
	actingUserHeader      = "X-User-Id"
	appointmentIDVar      = "appointmentId"
	cabinetIDVar          = "cabinetId"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListByCabinet(ctx context.Context, cabinetID int64, f appointments.ListFilter) ([]domain.Appointment, error)
	ListToday(ctx context.Context, cabinetID int64) ([]domain.Appointment, error)
	Location() *time.Location
}

type AppointmentsHandler struct {
	svc appointmentsService
	log *slog.Logger
}

func NewAppointmentsHandler(svc appointmentsService, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsHandler{
		svc: svc,
		log: log.With(slog.String("component", "http.appointments")),
	}
}

// Register mounts the appointment routes on r under /appointments.
func (h *AppointmentsHandler) Register(r *mux.Router) {
	sub := r.PathPrefix("/appointments").Subrouter()
	sub.HandleFunc("", h.create).Methods(http.MethodPost)
	sub.HandleFunc("/", h.create).Methods(http.MethodPost)
	sub.HandleFunc("/cabinet/{cabinetId:[0-9]+}", h.listByCabinet).Methods(http.MethodGet)
	sub.HandleFunc("/cabinet/{cabinetId:[0-9]+}/today", h.listToday).Methods(http.MethodGet)
	sub.HandleFunc("/{appointmentId}", h.get).Methods(http.MethodGet)
	sub.HandleFunc("/{appointmentId}", h.update).Methods(http.MethodPut)
	sub.HandleFunc("/{appointmentId}", h.delete).Methods(http.MethodDelete)
}

func (h *AppointmentsHandler) opLogger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", httpx.RequestIDFromContext(r.Context())),
	)
}

func (h *AppointmentsHandler) create(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "create")

	var req createAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		msg := msgInvalidBody
		var fErr *fieldDecodeError
		if errors.As(err, &fErr) {
			msg = msgInvalidInput
		}
		badRequest(w, log, msg, err)
		return
	}
	in := req.input()
	if in.CreatedBy == nil {
		in.CreatedBy = actingUser(r)
	}
	in.IdempotencyKey = idempotencyKey(r)

	appt, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, log.With(slog.Int64("cabinet_id", in.CabinetID)), err, msgCreateFailed)
		return
	}

	log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.Int64("cabinet_id", appt.CabinetID),
		slog.String("type", string(appt.Type)),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *AppointmentsHandler) listByCabinet(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "list_by_cabinet")

	cabinetID, err := cabinetIDFromPath(r)
	if err != nil {
		badRequest(w, log, msgInvalidInput, err)
		return
	}
	log = log.With(slog.Int64("cabinet_id", cabinetID))

	filter, err := parseListFilter(r.URL.Query(), h.svc.Location())
	if err != nil {
		badRequest(w, log, msgInvalidInput, err)
		return
	}

	rows, err := h.svc.ListByCabinet(r.Context(), cabinetID, filter)
	if err != nil {
		writeError(w, log, err, msgListFailed)
		return
	}

	log.Debug("appointments listed", slog.Int("count", len(rows)))
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponses(rows))
}

func (h *AppointmentsHandler) listToday(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "list_today")

	cabinetID, err := cabinetIDFromPath(r)
	if err != nil {
		badRequest(w, log, msgInvalidInput, err)
		return
	}
	log = log.With(slog.Int64("cabinet_id", cabinetID))

	rows, err := h.svc.ListToday(r.Context(), cabinetID)
	if err != nil {
		writeError(w, log, err, msgListFailed)
		return
	}

	log.Debug("today's appointments listed", slog.Int("count", len(rows)))
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponses(rows))
}

func (h *AppointmentsHandler) get(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "get")

	id, ok := appointmentIDFromPath(w, r, log)
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, log.With(slog.String("appointment_id", id.String())), err, msgGetFailed)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentsHandler) update(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "update")

	id, ok := appointmentIDFromPath(w, r, log)
	if !ok {
		return
	}
	log = log.With(slog.String("appointment_id", id.String()))

	var req updateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, log, msgInvalidBody, err)
		return
	}
	in := req.input()
	if in.UpdatedBy == nil {
		in.UpdatedBy = actingUser(r)
	}

	appt, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, log, err, msgUpdateFailed)
		return
	}

	log.Info("appointment updated",
		slog.Int64("cabinet_id", appt.CabinetID),
		slog.String("status", string(appt.Status)),
		slog.Time("start_time", appt.StartTime),
		slog.Time("end_time", appt.EndTime),
	)
	httpx.WriteJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *AppointmentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	log := h.opLogger(r, "delete")

	id, ok := appointmentIDFromPath(w, r, log)
	if !ok {
		return
	}
	log = log.With(slog.String("appointment_id", id.String()))

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, log, err, msgDeleteFailed)
		return
	}

	log.Info("appointment deleted")
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: msgDeleted})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// appointmentIDFromPath answers 404 for ids that are not UUIDs, since no
// appointment can have them.
func appointmentIDFromPath(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	raw := mux.Vars(r)[appointmentIDVar]
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		log.Info("appointment not found", slog.String("reason", "invalid_id"), slog.String("appointment_id", raw))
		httpx.WriteJSON(w, http.StatusNotFound, errorResponse{Message: msgNotFound})
		return uuid.Nil, false
	}
	return id, true
}

func cabinetIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[cabinetIDVar], 10, 64)
}

func idempotencyKey(r *http.Request) string {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		key = r.Header.Get(xIdempotencyKeyHeader)
	}
	return strings.TrimSpace(key)
}

// actingUser reads the id an upstream gateway puts on authenticated requests.
func actingUser(r *http.Request) *int64 {
	raw := strings.TrimSpace(r.Header.Get(actingUserHeader))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
