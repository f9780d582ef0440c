package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/enums"
)

// UserInvitation provisions an account out-of-band. A partial unique index
// (ux_user_invitations_pending_email, on email where consumed_at is null)
// guarantees at most one pending invitation per address; concurrent create
// attempts lose at the storage layer, not in application code.
type UserInvitation struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email      string     `gorm:"column:email;type:text;not null"`
	Token      string     `gorm:"column:token;type:text;not null;uniqueIndex:ux_user_invitations_token"`
	CompanyID  uuid.UUID  `gorm:"column:company_id;type:uuid;not null"`
	Role       enums.Role `gorm:"column:role;type:user_role;not null"`
	ConsumedAt *time.Time `gorm:"column:consumed_at;type:timestamptz"`
	ConsumedBy *uuid.UUID `gorm:"column:consumed_by;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Pending reports whether the invitation has not yet been consumed.
func (i UserInvitation) Pending() bool {
	return i.ConsumedAt == nil
}
