package availability

import (
	"time"

	"salonbook/backend/internal/domain"
)

// Interval is a half-open [Start, End) span of calendar time.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// HasConflict reports whether [start, end) overlaps any of the existing intervals.
func HasConflict(start, end time.Time, existing []Interval) bool {
	candidate := Interval{Start: start, End: end}
	for _, e := range existing {
		if candidate.Overlaps(e) {
			return true
		}
	}
	return false
}

// IntervalsOf maps appointments to their occupied intervals. Cancelled
// appointments free the calendar and are skipped.
func IntervalsOf(appts []domain.Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if a.Status == domain.StatusCancelled {
			continue
		}
		out = append(out, Interval{Start: a.DateTime, End: a.DateTime.Add(a.Duration())})
	}
	return out
}
