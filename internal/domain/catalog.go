package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Service is a bookable salon service. The catalog owns it; the booking core only reads it.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string          `bun:"id,pk"`
	Name            string          `bun:"name,notnull"`
	DurationMinutes int             `bun:"duration_minutes,notnull"`
	Price           decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Active          bool            `bun:"active,notnull"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// TotalDuration sums service durations in catalog order.
func TotalDuration(services []Service) time.Duration {
	var total time.Duration
	for _, s := range services {
		total += s.Duration()
	}
	return total
}

type UserRole string

const (
	RoleClient  UserRole = "CLIENT"
	RoleStylist UserRole = "STYLIST"
	RoleAdmin   UserRole = "ADMIN"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID     string   `bun:"id,pk"`
	Name   string   `bun:"name,notnull"`
	Email  string   `bun:"email,notnull"`
	Role   UserRole `bun:"role,notnull"`
	Active bool     `bun:"active,notnull"`
}

type FamilyMember struct {
	bun.BaseModel `bun:"table:family_members"`

	ID     string `bun:"id,pk"`
	UserID string `bun:"user_id,notnull"`
	Name   string `bun:"name,notnull"`
}
