package httpapi

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"vetcab/backend/internal/domain"
	"vetcab/backend/internal/service/appointments"
)

const dateLayout = "2006-01-02"

// parseListFilter reads startDate, endDate and type. Dates are RFC 3339
// timestamps or calendar dates in loc; a calendar endDate covers that whole day.
func parseListFilter(q url.Values, loc *time.Location) (appointments.ListFilter, error) {
	var f appointments.ListFilter

	if raw := strings.TrimSpace(q.Get("startDate")); raw != "" {
		t, _, err := parseDate(raw, loc)
		if err != nil {
			return f, fmt.Errorf("startDate: %w", err)
		}
		f.From = &t
	}

	if raw := strings.TrimSpace(q.Get("endDate")); raw != "" {
		t, dateOnly, err := parseDate(raw, loc)
		if err != nil {
			return f, fmt.Errorf("endDate: %w", err)
		}
		if dateOnly {
			end := domain.DayWindow(t, loc).End
			f.To = &end
		} else {
			f.To = &t
			f.ToInclusive = true
		}
	}

	if raw := strings.TrimSpace(q.Get("type")); raw != "" {
		typ := domain.AppointmentType(raw)
		f.Type = &typ
	}
	return f, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", raw)
	}
	return t, true, nil
}
