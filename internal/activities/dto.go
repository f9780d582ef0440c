package activities

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/db/models"
)

// ActivityDTO is the transport shape for activity records.
type ActivityDTO struct {
	ID          uuid.UUID  `json:"id"`
	CompanyID   uuid.UUID  `json:"company_id"`
	GuideID     *uuid.UUID `json:"guide_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	PriceCents  int64      `json:"price_cents"`
	PhotoRef    *string    `json:"photo_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateActivityRequest is the controller payload for publishing an activity.
type CreateActivityRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time" validate:"required"`
	PriceCents  int64      `json:"price_cents" validate:"gte=0"`
	GuideID     *uuid.UUID `json:"guide_id,omitempty"`
	PhotoRef    *string    `json:"photo_ref,omitempty"`
}

// UpdateActivityRequest carries the mutable activity fields. Nil means
// leave unchanged; GuideID uses the explicit flag so the assignment can be
// cleared.
type UpdateActivityRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	PriceCents  *int64     `json:"price_cents,omitempty"`
	PhotoRef    *string    `json:"photo_ref,omitempty"`
	GuideID     *uuid.UUID `json:"guide_id,omitempty"`
	ClearGuide  bool       `json:"clear_guide,omitempty"`
}

func FromModel(a *models.Activity) *ActivityDTO {
	if a == nil {
		return nil
	}
	return &ActivityDTO{
		ID:          a.ID,
		CompanyID:   a.CompanyID,
		GuideID:     a.GuideID,
		Name:        a.Name,
		Description: a.Description,
		StartTime:   a.StartTime,
		PriceCents:  a.PriceCents,
		PhotoRef:    a.PhotoRef,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
