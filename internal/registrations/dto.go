package registrations

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/db/models"
)

// RegistrationDTO is the transport shape for an enrollment record.
type RegistrationDTO struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	ActivityID   uuid.UUID `json:"activity_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// MyActivityDTO is a registration joined with the activity it enrolls into,
// served on the "my activities" page.
type MyActivityDTO struct {
	RegistrationID uuid.UUID  `json:"registration_id"`
	ActivityID     uuid.UUID  `json:"activity_id"`
	CompanyID      uuid.UUID  `json:"company_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	StartTime      time.Time  `json:"start_time"`
	PriceCents     int64      `json:"price_cents"`
	PhotoRef       *string    `json:"photo_ref,omitempty"`
	RegisteredAt   time.Time  `json:"registered_at"`
	GuideID        *uuid.UUID `json:"guide_id,omitempty"`
}

func FromModel(r *models.ActivityRegistration) *RegistrationDTO {
	if r == nil {
		return nil
	}
	return &RegistrationDTO{
		ID:           r.ID,
		UserID:       r.UserID,
		ActivityID:   r.ActivityID,
		RegisteredAt: r.RegisteredAt,
	}
}
