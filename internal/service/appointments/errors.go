package appointments

import (
	"fmt"
	"strings"
	"time"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/store"
)

// Required create fields, keyed the way they are reported back to clients.
const (
	FieldTitle     = "title"
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
	FieldCabinetID = "cabinetId"
)

var requiredFields = []string{FieldTitle, FieldStartTime, FieldEndTime, FieldCabinetID}

type ValidationError struct {
	msg string

	// Missing is set only when required create fields are absent. It holds
	// every required field, true for the ones that were missing.
	Missing map[string]bool
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func missingFieldsError(missing map[string]bool) error {
	names := make([]string, 0, len(requiredFields))
	for _, f := range requiredFields {
		if missing[f] {
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return &ValidationError{
		msg:     "missing required fields: " + strings.Join(names, ", "),
		Missing: missing,
	}
}

func conflictError(with domain.Appointment) error {
	return fmt.Errorf("%w: overlaps appointment %s [%s, %s)",
		store.ErrConflict, with.ID, with.StartTime.UTC().Format(time.RFC3339), with.EndTime.UTC().Format(time.RFC3339))
}
