package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Resolve returns the active services for ids in request order.
func (r *CatalogRepo) Resolve(ctx context.Context, ids []string) ([]domain.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []domain.Service
	err := r.db.NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Where("active").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Service, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	out := make([]domain.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("service %s: %w", id, store.ErrNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *UserRepo) Exists(ctx context.Context, id string, role domain.UserRole) (bool, error) {
	q := r.db.NewSelect().
		Model((*domain.User)(nil)).
		Where("id = ?", id).
		Where("active")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	return q.Exists(ctx)
}

func (r *UserRepo) FamilyMemberExists(ctx context.Context, userID, memberID string) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.FamilyMember)(nil)).
		Where("id = ?", memberID).
		Where("user_id = ?", userID).
		Exists(ctx)
}
