package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const overlapConstraint = "appointments_no_overlap"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id, false)
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, int, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Relation("Services", orderServices)

	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(filter.Statuses))
	}
	if len(filter.ExcludeStatus) > 0 {
		q = q.Where("status NOT IN (?)", bun.In(filter.ExcludeStatus))
	}
	if filter.StartsFrom != nil {
		q = q.Where("date_time >= ?", *filter.StartsFrom)
	}
	if filter.StartsBefore != nil {
		q = q.Where("date_time < ?", *filter.StartsBefore)
	}
	if filter.Descending {
		q = q.OrderExpr("date_time DESC, id DESC")
	} else {
		q = q.OrderExpr("date_time ASC, id ASC")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *AppointmentRepo) FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	return findOverlapping(ctx, r.db, stylistID, from, to, excludeStatuses)
}

// ListStartingBetween returns appointments in status whose start lies in [from, to).
func (r *AppointmentRepo) ListStartingBetween(ctx context.Context, status domain.AppointmentStatus, from, to time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Services", orderServices).
		Where("status = ?", status).
		Where("date_time >= ?", from).
		Where("date_time < ?", to).
		OrderExpr("date_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InStylistTransaction takes one advisory lock per stylist in a stable order so
// two writers touching the same pair of calendars cannot deadlock.
func (r *AppointmentRepo) InStylistTransaction(ctx context.Context, fn func(ctx context.Context, tx store.CalendarTx) error, stylistIDs ...string) error {
	ids := uniqueSorted(stylistIDs)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, id := range ids {
			if err := lockStylistCalendar(ctx, tx, id); err != nil {
				return err
			}
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockStylistCalendar(ctx context.Context, tx bun.Tx, stylistID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "stylist:"+stylistID).Exec(ctx)
	return err
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r calendarTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.tx, id, true)
}

func (r calendarTx) FindOverlapping(ctx context.Context, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	return findOverlapping(ctx, r.tx, stylistID, from, to, excludeStatuses)
}

func (r calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error) {
	m := appt
	m.Services = nil

	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		// Same idempotent id already taken under a different calendar lock.
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}

	if err := r.insertLinks(ctx, m.ID, serviceIDs); err != nil {
		return domain.Appointment{}, err
	}
	return getAppointment(ctx, r.tx, m.ID, false)
}

func (r calendarTx) UpdateAppointment(ctx context.Context, appt domain.Appointment, serviceIDs []string) (domain.Appointment, error) {
	m := appt
	m.Services = nil

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("family_member_id", "stylist_id", "date_time", "end_time", "duration_minutes",
			"status", "notes", "cancellation_reason", "internal_notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}

	if serviceIDs != nil {
		_, err := r.tx.NewDelete().
			Model((*domain.AppointmentService)(nil)).
			Where("appointment_id = ?", m.ID).
			Exec(ctx)
		if err != nil {
			return domain.Appointment{}, err
		}
		if err := r.insertLinks(ctx, m.ID, serviceIDs); err != nil {
			return domain.Appointment{}, err
		}
	}
	return getAppointment(ctx, r.tx, m.ID, false)
}

func (r calendarTx) insertLinks(ctx context.Context, appointmentID uuid.UUID, serviceIDs []string) error {
	if len(serviceIDs) == 0 {
		return nil
	}
	links := make([]domain.AppointmentService, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		links = append(links, domain.AppointmentService{AppointmentID: appointmentID, ServiceID: id})
	}
	_, err := r.tx.NewInsert().Model(&links).Exec(ctx)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func getAppointment(ctx context.Context, db bun.IDB, id uuid.UUID, forUpdate bool) (domain.Appointment, error) {
	var a domain.Appointment
	q := db.NewSelect().
		Model(&a).
		Relation("Services", orderServices).
		Where("id = ?", id).
		Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func findOverlapping(ctx context.Context, db bun.IDB, stylistID string, from, to time.Time, excludeStatuses []domain.AppointmentStatus) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("stylist_id = ?", stylistID).
		Where("date_time < ?", to).
		Where("end_time > ?", from)
	if len(excludeStatuses) > 0 {
		q = q.Where("status NOT IN (?)", bun.In(excludeStatuses))
	}
	if err := q.OrderExpr("date_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func orderServices(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("service.id ASC")
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "23P01" && pgErr.ConstraintName == overlapConstraint:
		return store.ErrConflict
	case pgErr.Code == "23503":
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrNotFound)
	}
	return err
}
