package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"vetcab/backend/internal/service/appointments"
	"vetcab/backend/internal/store"
	"vetcab/backend/internal/transport/httpx"
)

const (
	msgMissingFields       = "Câmpurile obligatorii lipsesc"
	msgInvalidInput        = "Date invalide"
	msgInvalidBody         = "Corpul cererii este invalid"
	msgBodyTooLarge        = "Corpul cererii este prea mare"
	msgConflict            = "Există deja o programare în acest interval orar"
	msgIdempotencyConflict = "Cheia de idempotență a fost deja folosită pentru o altă programare"
	msgNotFound            = "Programarea nu a fost găsită"
	msgCabinetNotFound     = "Cabinetul nu a fost găsit"
	msgUserNotFound        = "Utilizatorul nu a fost găsit"
	msgDeleted             = "Programarea a fost ștearsă cu succes"

	msgCreateFailed = "Eroare la crearea programării"
	msgListFailed   = "Eroare la încărcarea programărilor"
	msgGetFailed    = "Eroare la încărcarea programării"
	msgUpdateFailed = "Eroare la actualizarea programării"
	msgDeleteFailed = "Eroare la ștergerea programării"
)

type errorResponse struct {
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Missing map[string]bool `json:"missing,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeError renders err with the status and message clients expect.
// internalMsg is used for errors that are not part of the API contract.
func writeError(w http.ResponseWriter, log *slog.Logger, err error, internalMsg string) {
	var vErr *appointments.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &vErr) && vErr.Missing != nil:
		log.Warn("missing required fields", slog.Any("missing", vErr.Missing))
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msgMissingFields, Missing: vErr.Missing})
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msgInvalidInput, Error: vErr.Error()})
	case errors.Is(err, store.ErrConflict):
		log.Info("appointment conflict", slog.Any("err", err))
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msgConflict})
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict")
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msgIdempotencyConflict})
	case errors.Is(err, store.ErrUserNotFound):
		log.Info("user not found")
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msgUserNotFound})
	case errors.Is(err, store.ErrCabinetNotFound):
		log.Info("cabinet not found")
		httpx.WriteJSON(w, http.StatusNotFound, errorResponse{Message: msgCabinetNotFound})
	case errors.Is(err, store.ErrNotFound):
		log.Info("appointment not found")
		httpx.WriteJSON(w, http.StatusNotFound, errorResponse{Message: msgNotFound})
	case errors.As(err, &maxErr):
		log.Warn("request body too large", slog.Int64("limit", maxErr.Limit))
		httpx.WriteJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Message: msgBodyTooLarge})
	default:
		log.Error("request failed", slog.Any("err", err))
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Message: internalMsg, Error: err.Error()})
	}
}

// badRequest reports malformed input that never reached the service.
func badRequest(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, log, err, msg)
		return
	}
	log.Warn("invalid request", slog.String("reason", msg), slog.Any("err", err))
	httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Message: msg, Error: err.Error()})
}
