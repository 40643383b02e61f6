package domain

import (
	"testing"
	"time"
)

func TestWindowOverlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}
	existing := Window{Start: at(10, 0), End: at(11, 0)}

	tests := []struct {
		name string
		in   Window
		want bool
	}{
		{"inside", Window{Start: at(10, 30), End: at(10, 45)}, true},
		{"starts inside", Window{Start: at(10, 30), End: at(11, 30)}, true},
		{"ends inside", Window{Start: at(9, 30), End: at(10, 30)}, true},
		{"contains", Window{Start: at(9, 0), End: at(12, 0)}, true},
		{"identical", Window{Start: at(10, 0), End: at(11, 0)}, true},
		{"touches end", Window{Start: at(11, 0), End: at(12, 0)}, false},
		{"touches start", Window{Start: at(9, 0), End: at(10, 0)}, false},
		{"before", Window{Start: at(8, 0), End: at(9, 0)}, false},
		{"after", Window{Start: at(12, 0), End: at(13, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := existing.Overlaps(tt.in); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.in.Overlaps(existing); got != tt.want {
				t.Fatalf("Overlaps is not symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Bucharest")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	now := time.Date(2026, 5, 14, 15, 20, 0, 0, loc)
	w := DayWindow(now, loc)

	if !w.Start.Equal(time.Date(2026, 5, 14, 0, 0, 0, 0, loc)) {
		t.Fatalf("start = %v", w.Start)
	}
	if !w.End.Equal(time.Date(2026, 5, 15, 0, 0, 0, 0, loc)) {
		t.Fatalf("end = %v", w.End)
	}
	if !w.Contains(time.Date(2026, 5, 14, 23, 59, 59, 0, loc)) {
		t.Fatalf("expected 23:59:59 today to be included")
	}
	if w.Contains(time.Date(2026, 5, 15, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected 00:00:00 tomorrow to be excluded")
	}

	t.Run("dst transition day is 23 hours", func(t *testing.T) {
		w := DayWindow(time.Date(2026, 3, 29, 12, 0, 0, 0, loc), loc)
		if got := w.End.Sub(w.Start); got != 23*time.Hour {
			t.Fatalf("day length = %v, want 23h", got)
		}
	})
}

func TestAppointmentSameContent(t *testing.T) {
	name := "Rex"
	other := "Max"
	a := Appointment{
		Title:      "checkup",
		StartTime:  time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC),
		Type:       AppointmentTypeAppointment,
		Status:     AppointmentStatusScheduled,
		ClientName: &name,
		CabinetID:  1,
	}

	b := a
	b.CreatedAt = time.Now()
	if !a.SameContent(b) {
		t.Fatalf("expected same content when only timestamps differ")
	}

	b.ClientName = &other
	if a.SameContent(b) {
		t.Fatalf("expected different content when client name differs")
	}

	b.ClientName = nil
	if a.SameContent(b) {
		t.Fatalf("expected nil and non-nil client name to differ")
	}
}
