package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOpenHour     = 9
	DefaultCloseHour    = 17
	DefaultSlotStep     = 30 * time.Minute
	DefaultModifyCutoff = 24 * time.Hour
)

// BookingPolicy holds the salon's business rules for availability and changes.
// Working hours are interpreted in Location.
type BookingPolicy struct {
	OpenHour     int
	CloseHour    int
	SlotStep     time.Duration
	ModifyCutoff time.Duration
	WorkingDays  []time.Weekday
	Location     *time.Location
}

func DefaultBookingPolicy() BookingPolicy {
	return BookingPolicy{
		OpenHour:     DefaultOpenHour,
		CloseHour:    DefaultCloseHour,
		SlotStep:     DefaultSlotStep,
		ModifyCutoff: DefaultModifyCutoff,
		WorkingDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Location:     time.UTC,
	}
}

func (p BookingPolicy) Validate() error {
	if p.OpenHour < 0 || p.OpenHour > 23 {
		return errors.New("open hour must be between 0 and 23")
	}
	if p.CloseHour < 1 || p.CloseHour > 24 {
		return errors.New("close hour must be between 1 and 24")
	}
	if p.CloseHour <= p.OpenHour {
		return errors.New("close hour must be after open hour")
	}
	if p.SlotStep <= 0 {
		return errors.New("slot step must be positive")
	}
	if p.ModifyCutoff < 0 {
		return errors.New("modify cutoff must not be negative")
	}
	if len(p.WorkingDays) == 0 {
		return errors.New("at least one working day is required")
	}
	return nil
}

func (p BookingPolicy) Loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p BookingPolicy) IsWorkingDay(t time.Time) bool {
	wd := t.In(p.Loc()).Weekday()
	for _, d := range p.WorkingDays {
		if d == wd {
			return true
		}
	}
	return false
}

// OpeningOn returns the opening instant of the local calendar day containing t.
func (p BookingPolicy) OpeningOn(t time.Time) time.Time {
	l := t.In(p.Loc())
	return time.Date(l.Year(), l.Month(), l.Day(), p.OpenHour, 0, 0, 0, p.Loc())
}

// ClosingOn returns the closing instant of the local calendar day containing t.
func (p BookingPolicy) ClosingOn(t time.Time) time.Time {
	l := t.In(p.Loc())
	return time.Date(l.Year(), l.Month(), l.Day(), p.CloseHour, 0, 0, 0, p.Loc())
}

// NextOpening returns the opening instant of the local day after t.
func (p BookingPolicy) NextOpening(t time.Time) time.Time {
	l := t.In(p.Loc())
	return time.Date(l.Year(), l.Month(), l.Day()+1, p.OpenHour, 0, 0, 0, p.Loc())
}

// CanModify reports whether an appointment starting at dateTime may still be
// cancelled or rescheduled by the client at now.
func (p BookingPolicy) CanModify(dateTime, now time.Time) bool {
	return dateTime.Sub(now) > p.ModifyCutoff
}

func (p BookingPolicy) WorkingHoursLabel() string {
	days := make([]string, 0, len(p.WorkingDays))
	for _, d := range p.WorkingDays {
		days = append(days, d.String()[:3])
	}
	return fmt.Sprintf("%s %02d:00-%02d:00", strings.Join(days, ","), p.OpenHour, p.CloseHour)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseWorkingDays accepts a comma separated list of day names ("mon", "Tuesday")
// or ISO weekday numbers where 1 is Monday and 7 is Sunday.
func ParseWorkingDays(raw string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]struct{}, 7)
	var out []time.Weekday
	for _, part := range strings.Split(raw, ",") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" {
			continue
		}
		var wd time.Weekday
		if n, err := strconv.Atoi(tok); err == nil {
			if n < 1 || n > 7 {
				return nil, fmt.Errorf("invalid weekday %q", part)
			}
			wd = time.Weekday(n % 7)
		} else {
			if len(tok) > 3 {
				tok = tok[:3]
			}
			d, ok := weekdayNames[tok]
			if !ok {
				return nil, fmt.Errorf("invalid weekday %q", part)
			}
			wd = d
		}
		if _, dup := seen[wd]; dup {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one working day is required")
	}
	return out, nil
}
