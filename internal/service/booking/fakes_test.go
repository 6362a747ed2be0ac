package booking

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

// memCalendar is an in-memory AppointmentRepository. Transactions are
// serialized by one mutex and roll back on error.
type memCalendar struct {
	mu         sync.Mutex
	appts      map[uuid.UUID]domain.Appointment
	catalog    map[string]domain.Service
	lockSets   [][]string
	lastFilter store.AppointmentFilter
}

func newMemCalendar() *memCalendar {
	return &memCalendar{
		appts:   make(map[uuid.UUID]domain.Appointment),
		catalog: testServices(),
	}
}

func (m *memCalendar) seed(appt domain.Appointment, serviceIDs ...string) domain.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Services = m.servicesFor(serviceIDs)
	if appt.DurationMinutes == 0 {
		appt.DurationMinutes = int(domain.TotalDuration(appt.Services) / time.Minute)
	}
	appt.EndTime = appt.DateTime.Add(appt.Duration())
	m.appts[appt.ID] = appt
	return appt
}

func (m *memCalendar) servicesFor(ids []string) []domain.Service {
	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.catalog[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memCalendar) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appts)
}

func (m *memCalendar) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memCalendar) List(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter

	var out []domain.Appointment
	for _, a := range m.appts {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, a.Status) {
			continue
		}
		if containsStatus(filter.ExcludeStatus, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Descending {
			return out[i].DateTime.After(out[j].DateTime)
		}
		return out[i].DateTime.Before(out[j].DateTime)
	})
	return out, len(out), nil
}

func (m *memCalendar) FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, exclude []domain.AppointmentStatus) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlapping(stylistID, from, to, exclude), nil
}

func (m *memCalendar) overlapping(stylistID string, from, to time.Time, exclude []domain.AppointmentStatus) []domain.Appointment {
	var out []domain.Appointment
	for _, a := range m.appts {
		if a.StylistID != stylistID || containsStatus(exclude, a.Status) {
			continue
		}
		if a.DateTime.Before(to) && a.EndTime.After(from) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memCalendar) InStylistTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error, stylistIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockSets = append(m.lockSets, append([]string(nil), stylistIDs...))

	snapshot := make(map[uuid.UUID]domain.Appointment, len(m.appts))
	for k, v := range m.appts {
		snapshot[k] = v
	}
	if err := fn(ctx, memTx{m: m}); err != nil {
		m.appts = snapshot
		return err
	}
	return nil
}

type memTx struct {
	m *memCalendar
}

func (t memTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.m.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t memTx) FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, exclude []domain.AppointmentStatus) ([]domain.Appointment, error) {
	return t.m.overlapping(stylistID, from, to, exclude), nil
}

func (t memTx) CreateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error) {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if _, exists := t.m.appts[appt.ID]; exists {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	appt.Services = t.m.servicesFor(serviceIDs)
	t.m.appts[appt.ID] = appt
	return appt, nil
}

func (t memTx) UpdateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error) {
	if _, ok := t.m.appts[appt.ID]; !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if serviceIDs != nil {
		appt.Services = t.m.servicesFor(serviceIDs)
	}
	t.m.appts[appt.ID] = appt
	return appt, nil
}

func containsStatus(list []domain.AppointmentStatus, s domain.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func testServices() map[string]domain.Service {
	return map[string]domain.Service{
		"cut":    {ID: "cut", Name: "Cut", DurationMinutes: 30, Price: decimal.NewFromInt(25), Active: true},
		"wash":   {ID: "wash", Name: "Wash", DurationMinutes: 15, Price: decimal.NewFromInt(10), Active: true},
		"colour": {ID: "colour", Name: "Colour", DurationMinutes: 90, Price: decimal.RequireFromString("79.90"), Active: true},
	}
}

type fakeCatalog struct {
	resolveFn func(ctx context.Context, ids []string) ([]domain.Service, error)
}

func (f *fakeCatalog) Resolve(ctx context.Context, ids []string) ([]domain.Service, error) {
	if f.resolveFn == nil {
		panic("Resolve not configured")
	}
	return f.resolveFn(ctx, ids)
}

func catalogOf(services map[string]domain.Service) *fakeCatalog {
	return &fakeCatalog{resolveFn: func(ctx context.Context, ids []string) ([]domain.Service, error) {
		out := make([]domain.Service, 0, len(ids))
		for _, id := range ids {
			s, ok := services[id]
			if !ok {
				return nil, store.ErrNotFound
			}
			out = append(out, s)
		}
		return out, nil
	}}
}

type fakeUsers struct {
	users   map[string]domain.User
	members map[string]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: map[string]domain.User{
			"client-1":  {ID: "client-1", Name: "Ivo", Role: domain.RoleClient, Active: true},
			"client-2":  {ID: "client-2", Name: "Maja", Role: domain.RoleClient, Active: true},
			"stylist-1": {ID: "stylist-1", Name: "Ana", Role: domain.RoleStylist, Active: true},
			"stylist-2": {ID: "stylist-2", Name: "Bo", Role: domain.RoleStylist, Active: true},
		},
		members: map[string]string{"fm-1": "client-1"},
	}
}

func (f *fakeUsers) Get(ctx context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Exists(ctx context.Context, id string, role domain.UserRole) (bool, error) {
	u, ok := f.users[id]
	if !ok || !u.Active {
		return false, nil
	}
	return role == "" || u.Role == role, nil
}

func (f *fakeUsers) FamilyMemberExists(ctx context.Context, userID, memberID string) (bool, error) {
	return f.members[memberID] == userID, nil
}

type realtimeCall struct {
	userID string
	event  domain.RealtimeEvent
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
	realtime      []realtimeCall
}

func (r *recordingNotifier) Notify(ctx context.Context, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) Realtime(ctx context.Context, userID string, ev domain.RealtimeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.realtime = append(r.realtime, realtimeCall{userID: userID, event: ev})
}

// 2030-03-01 is a Friday; the first working day after it is Monday 2030-03-04.
var testNow = time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC)

func monday(hour, minute int) time.Time {
	return time.Date(2030, 3, 4, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	cal      *memCalendar
	notifier *recordingNotifier
	svc      *Service
}

func newFixture() fixture {
	cal := newMemCalendar()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(cal, catalogOf(cal.catalog), newFakeUsers(), notifier, domain.DefaultBookingPolicy(), logger).
		WithClock(func() time.Time { return testNow })
	return fixture{cal: cal, notifier: notifier, svc: svc}
}
