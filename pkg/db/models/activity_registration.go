package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityRegistration is the user↔activity enrollment pivot. The composite
// unique index ux_registrations_user_activity rejects double-enrollment even
// under concurrent double-submits.
type ActivityRegistration struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_registrations_user_activity"`
	ActivityID   uuid.UUID `gorm:"column:activity_id;type:uuid;not null;uniqueIndex:ux_registrations_user_activity"`
	RegisteredAt time.Time `gorm:"column:registered_at;type:timestamptz;autoCreateTime"`
}
