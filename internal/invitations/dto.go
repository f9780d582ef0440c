package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
)

// InvitationDTO is the transport shape returned to company owners.
type InvitationDTO struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	CompanyID  uuid.UUID  `json:"company_id"`
	Role       enums.Role `json:"role"`
	Pending    bool       `json:"pending"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// InvitePreviewDTO is the public shape shown on the accept page.
type InvitePreviewDTO struct {
	Email       string     `json:"email"`
	CompanyID   uuid.UUID  `json:"company_id"`
	CompanyName string     `json:"company_name"`
	Role        enums.Role `json:"role"`
}

// CreateInvitationRequest is the controller payload for issuing an invite.
type CreateInvitationRequest struct {
	Email string     `json:"email" validate:"required,email"`
	Role  enums.Role `json:"role" validate:"required"`
}

func FromModel(inv *models.UserInvitation) *InvitationDTO {
	if inv == nil {
		return nil
	}
	return &InvitationDTO{
		ID:         inv.ID,
		Email:      inv.Email,
		CompanyID:  inv.CompanyID,
		Role:       inv.Role,
		Pending:    inv.Pending(),
		ConsumedAt: inv.ConsumedAt,
		CreatedAt:  inv.CreatedAt,
	}
}
