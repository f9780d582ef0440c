package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/enums"
)

// User represents the canonical identity entity. CompanyID is set only for
// company owners and guides; customers and platform admins carry none.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string     `gorm:"column:name;type:text;not null"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Role         enums.Role `gorm:"column:role;type:user_role;not null;default:'customer'"`
	CompanyID    *uuid.UUID `gorm:"column:company_id;type:uuid"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
