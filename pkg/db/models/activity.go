package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity is a bookable event published by a company. GuideID, when set,
// must reference a guide belonging to the same company; the service layer
// enforces this before every write. PriceCents holds currency minor units.
type Activity struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID   uuid.UUID  `gorm:"column:company_id;type:uuid;not null"`
	GuideID     *uuid.UUID `gorm:"column:guide_id;type:uuid"`
	Name        string     `gorm:"column:name;type:text;not null"`
	Description string     `gorm:"column:description;type:text;not null"`
	StartTime   time.Time  `gorm:"column:start_time;type:timestamptz;not null"`
	PriceCents  int64      `gorm:"column:price_cents;not null"`
	PhotoRef    *string    `gorm:"column:photo_ref;type:text"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
