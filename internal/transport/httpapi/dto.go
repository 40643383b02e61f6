package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/service/appointments"
)

type createAppointmentRequest struct {
	Title       string                   `json:"title"`
	StartTime   requiredTime             `json:"startTime"`
	EndTime     requiredTime             `json:"endTime"`
	Type        domain.AppointmentType   `json:"type"`
	Status      domain.AppointmentStatus `json:"status"`
	ClientName  *string                  `json:"clientName"`
	ClientPhone *string                  `json:"clientPhone"`
	ClientEmail *string                  `json:"clientEmail"`
	Reason      *string                  `json:"reason"`
	Notes       *string                  `json:"notes"`
	CabinetID   requiredID               `json:"cabinetId"`
	CreatedBy   *int64                   `json:"createdBy"`
}

func (req createAppointmentRequest) input() appointments.CreateInput {
	in := appointments.CreateInput{
		Title:       req.Title,
		Type:        req.Type,
		Status:      req.Status,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		ClientEmail: req.ClientEmail,
		Reason:      req.Reason,
		Notes:       req.Notes,
		CreatedBy:   req.CreatedBy,
	}
	if req.StartTime.Value != nil {
		in.StartTime = *req.StartTime.Value
	}
	if req.EndTime.Value != nil {
		in.EndTime = *req.EndTime.Value
	}
	if req.CabinetID.Value != nil {
		in.CabinetID = *req.CabinetID.Value
	}
	return in
}

// blankJSON reports whether data is null or a string of only whitespace.
// Required fields holding either are treated as missing.
func blankJSON(data []byte) bool {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return true
	}
	var s string
	if len(data) > 0 && data[0] == '"' && json.Unmarshal(data, &s) == nil {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// fieldDecodeError reports a required field that is present but unparsable.
type fieldDecodeError struct {
	Value string
	Err   error
}

func (e *fieldDecodeError) Error() string {
	return fmt.Sprintf("invalid value %s: %v", e.Value, e.Err)
}

func (e *fieldDecodeError) Unwrap() error { return e.Err }

type requiredTime struct {
	Value *time.Time
}

func (t *requiredTime) UnmarshalJSON(data []byte) error {
	t.Value = nil
	if blankJSON(data) {
		return nil
	}
	var v time.Time
	if err := json.Unmarshal(data, &v); err != nil {
		return &fieldDecodeError{Value: string(data), Err: err}
	}
	t.Value = &v
	return nil
}

// requiredID accepts a JSON number or a numeric string.
type requiredID struct {
	Value *int64
}

func (id *requiredID) UnmarshalJSON(data []byte) error {
	id.Value = nil
	if blankJSON(data) {
		return nil
	}
	raw := bytes.TrimSpace(data)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return &fieldDecodeError{Value: string(data), Err: err}
		}
		raw = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return &fieldDecodeError{Value: string(data), Err: err}
	}
	id.Value = &v
	return nil
}

// optional tells an omitted JSON field apart from an explicit null.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optional[T]) change() appointments.Change[T] {
	return appointments.Change[T]{Set: o.Set, Value: o.Value}
}

type updateAppointmentRequest struct {
	Title       optional[string]                   `json:"title"`
	StartTime   optional[time.Time]                `json:"startTime"`
	EndTime     optional[time.Time]                `json:"endTime"`
	Type        optional[domain.AppointmentType]   `json:"type"`
	Status      optional[domain.AppointmentStatus] `json:"status"`
	ClientName  optional[string]                   `json:"clientName"`
	ClientPhone optional[string]                   `json:"clientPhone"`
	ClientEmail optional[string]                   `json:"clientEmail"`
	Reason      optional[string]                   `json:"reason"`
	Notes       optional[string]                   `json:"notes"`
	UpdatedBy   *int64                             `json:"updatedBy"`
}

func (req updateAppointmentRequest) input() appointments.UpdateInput {
	return appointments.UpdateInput{
		Title:       req.Title.change(),
		StartTime:   req.StartTime.change(),
		EndTime:     req.EndTime.change(),
		Type:        req.Type.change(),
		Status:      req.Status.change(),
		ClientName:  req.ClientName.change(),
		ClientPhone: req.ClientPhone.change(),
		ClientEmail: req.ClientEmail.change(),
		Reason:      req.Reason.change(),
		Notes:       req.Notes.change(),
		UpdatedBy:   req.UpdatedBy,
	}
}

type userResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type cabinetResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type appointmentResponse struct {
	ID          string                   `json:"id"`
	Title       string                   `json:"title"`
	StartTime   time.Time                `json:"startTime"`
	EndTime     time.Time                `json:"endTime"`
	Type        domain.AppointmentType   `json:"type"`
	Status      domain.AppointmentStatus `json:"status"`
	ClientName  *string                  `json:"clientName"`
	ClientPhone *string                  `json:"clientPhone"`
	ClientEmail *string                  `json:"clientEmail"`
	Reason      *string                  `json:"reason"`
	Notes       *string                  `json:"notes"`
	CabinetID   int64                    `json:"cabinetId"`
	CreatedBy   *int64                   `json:"createdBy"`
	UpdatedBy   *int64                   `json:"updatedBy"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`

	Creator *userResponse    `json:"creator,omitempty"`
	Updater *userResponse    `json:"updater,omitempty"`
	Cabinet *cabinetResponse `json:"cabinet,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:          a.ID.String(),
		Title:       a.Title,
		StartTime:   a.StartTime.UTC(),
		EndTime:     a.EndTime.UTC(),
		Type:        a.Type,
		Status:      a.Status,
		ClientName:  a.ClientName,
		ClientPhone: a.ClientPhone,
		ClientEmail: a.ClientEmail,
		Reason:      a.Reason,
		Notes:       a.Notes,
		CabinetID:   a.CabinetID,
		CreatedBy:   a.CreatedBy,
		UpdatedBy:   a.UpdatedBy,
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
		Creator:     toUserResponse(a.Creator),
		Updater:     toUserResponse(a.Updater),
		Cabinet:     toCabinetResponse(a.Cabinet),
	}
}

func toAppointmentResponses(rows []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

// A joined summary with a zero id means the reference had no matching row.
func toUserResponse(u *domain.UserSummary) *userResponse {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &userResponse{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

func toCabinetResponse(c *domain.CabinetSummary) *cabinetResponse {
	if c == nil || c.ID == 0 {
		return nil
	}
	return &cabinetResponse{ID: c.ID, Name: c.Name, Address: c.Address}
}
