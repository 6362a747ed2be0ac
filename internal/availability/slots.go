package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

var ErrInvalidRange = errors.New("date_from must not be after date_to")

type ServiceSummary struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration"`
	Price           decimal.Decimal `json:"price"`
}

// Slot is a bookable candidate interval. It is derived on every query and never stored.
type Slot struct {
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	DurationMinutes int              `json:"duration"`
	Services        []ServiceSummary `json:"services"`
}

// Walk enumerates slots for the given services between from and to (inclusive of
// slot starts equal to to). A from inside working hours is rounded up to the
// next step boundary counted from opening. The cursor advances by the policy step inside working
// hours and jumps to the next opening once it reaches closing time. A slot is kept
// when it ends no later than closing and does not overlap any busy interval.
func Walk(policy domain.BookingPolicy, from, to time.Time, services []domain.Service, busy []Interval) []Slot {
	total := domain.TotalDuration(services)
	if total <= 0 || policy.SlotStep <= 0 || from.After(to) {
		return nil
	}

	summaries := summarize(services)
	minutes := int(total / time.Minute)

	cursor := from.In(policy.Loc())
	if open := policy.OpeningOn(cursor); cursor.Before(open) {
		cursor = open
	} else if rem := cursor.Sub(open) % policy.SlotStep; rem != 0 {
		// Starts sit on the grid anchored at opening time.
		cursor = cursor.Add(policy.SlotStep - rem)
	}
	if !cursor.Before(policy.ClosingOn(cursor)) {
		cursor = policy.NextOpening(cursor)
	}

	var slots []Slot
	for !cursor.After(to) {
		if !policy.IsWorkingDay(cursor) {
			cursor = policy.NextOpening(cursor)
			continue
		}

		dayClose := policy.ClosingOn(cursor)
		end := cursor.Add(total)
		if !end.After(dayClose) && !HasConflict(cursor, end, busy) {
			slots = append(slots, Slot{
				Start:           cursor,
				End:             end,
				DurationMinutes: minutes,
				Services:        append([]ServiceSummary(nil), summaries...),
			})
		}

		next := cursor.Add(policy.SlotStep)
		if !next.Before(dayClose) {
			next = policy.NextOpening(cursor)
		}
		cursor = next
	}

	return slots
}

func summarize(services []domain.Service) []ServiceSummary {
	out := make([]ServiceSummary, 0, len(services))
	for _, s := range services {
		out = append(out, ServiceSummary{
			ID:              s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           s.Price,
		})
	}
	return out
}

type appointmentFinder interface {
	FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error)
}

type Query struct {
	StylistID  string
	ServiceIDs []string
	From       time.Time
	To         time.Time
}

type Result struct {
	Stylist       domain.User
	Services      []domain.Service
	Slots         []Slot
	TotalDuration time.Duration
	From          time.Time
	To            time.Time
}

// Generator answers availability queries. It only reads; it never mutates the calendar.
type Generator struct {
	catalog store.ServiceCatalog
	users   store.UserDirectory
	appts   appointmentFinder
	policy  domain.BookingPolicy
	now     func() time.Time
}

func NewGenerator(catalog store.ServiceCatalog, users store.UserDirectory, appts appointmentFinder, policy domain.BookingPolicy) *Generator {
	return &Generator{
		catalog: catalog,
		users:   users,
		appts:   appts,
		policy:  policy,
		now:     time.Now,
	}
}

// WithClock replaces the clock used to drop slots that already started.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) Policy() domain.BookingPolicy {
	return g.policy
}

func (g *Generator) Generate(ctx context.Context, q Query) (Result, error) {
	if q.From.After(q.To) {
		return Result{}, ErrInvalidRange
	}

	stylist, err := g.users.Get(ctx, q.StylistID)
	if err != nil {
		return Result{}, fmt.Errorf("stylist %s: %w", q.StylistID, err)
	}
	if stylist.Role != domain.RoleStylist || !stylist.Active {
		return Result{}, fmt.Errorf("stylist %s: %w", q.StylistID, store.ErrNotFound)
	}

	services, err := g.catalog.Resolve(ctx, q.ServiceIDs)
	if err != nil {
		return Result{}, err
	}
	total := domain.TotalDuration(services)

	existing, err := g.appts.FindOverlapping(ctx, q.StylistID, q.From, q.To.Add(total), store.ExcludeCancelled)
	if err != nil {
		return Result{}, err
	}

	now := g.now()
	slots := Walk(g.policy, q.From, q.To, services, IntervalsOf(existing))
	upcoming := slots[:0]
	for _, s := range slots {
		if s.Start.Before(now) {
			continue
		}
		upcoming = append(upcoming, s)
	}

	return Result{
		Stylist:       stylist,
		Services:      services,
		Slots:         upcoming,
		TotalDuration: total,
		From:          q.From,
		To:            q.To,
	}, nil
}
