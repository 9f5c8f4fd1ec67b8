package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleInstaller   Role = "Installer"
	RoleJobGiver    Role = "Job Giver"
	RoleSupportTeam Role = "Support Team"
)

// Roles набор ролей пользователя, один пользователь может иметь несколько.
type Roles []Role

func (r Roles) Has(role Role) bool {
	for _, v := range r {
		if v == role {
			return true
		}
	}
	return false
}

// IsStaff администратор или поддержка.
func (r Roles) IsStaff() bool {
	return r.Has(RoleAdmin) || r.Has(RoleSupportTeam)
}

// ParseRoles отбрасывает неизвестные значения.
func ParseRoles(raw []string) Roles {
	out := make(Roles, 0, len(raw))
	for _, v := range raw {
		switch Role(v) {
		case RoleAdmin, RoleInstaller, RoleJobGiver, RoleSupportTeam:
			out = append(out, Role(v))
		}
	}
	return out
}

// Actor аутентифицированный участник запроса.
type Actor struct {
	ID    uuid.UUID
	Roles Roles
}

// Тарифные планы для дневных AI лимитов.
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierAdmin = "admin"
)

// User профиль пользователя платформы.
type User struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Email            string         `db:"email" json:"email"`
	Roles            pq.StringArray `db:"roles" json:"roles"`
	Status           UserStatus     `db:"status" json:"status"`
	SubscriptionTier string         `db:"subscription_tier" json:"subscriptionTier"`
	ReputationPoints int            `db:"reputation_points" json:"reputationPoints"`
	BeneficiaryID    *string        `db:"beneficiary_id" json:"-"`
	Bookmarks        pq.StringArray `db:"bookmarks" json:"bookmarks"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

func (u *User) RoleSet() Roles {
	return ParseRoles(u.Roles)
}

// Tier возвращает тариф, администраторы всегда получают admin.
func (u *User) Tier() string {
	if u.RoleSet().Has(RoleAdmin) {
		return TierAdmin
	}
	switch u.SubscriptionTier {
	case TierPro:
		return TierPro
	}
	return TierFree
}

// ReputationChange запись журнала изменения репутации.
type ReputationChange struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"userId"`
	JobID     *uuid.UUID `db:"job_id" json:"jobId,omitempty"`
	Delta     int        `db:"delta" json:"delta"`
	Reason    string     `db:"reason" json:"reason"`
	Points    int        `db:"points_after" json:"pointsAfter"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}
