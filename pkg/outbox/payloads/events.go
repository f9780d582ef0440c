package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ActivityRegisteredEvent is published when a customer enrolls in an activity.
type ActivityRegisteredEvent struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	UserID         uuid.UUID `json:"userId"`
	ActivityID     uuid.UUID `json:"activityId"`
	ActivityName   string    `json:"activityName"`
	CompanyID      uuid.UUID `json:"companyId"`
	StartTime      time.Time `json:"startTime"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// RegistrationCanceledEvent is published when a customer cancels an enrollment.
type RegistrationCanceledEvent struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	UserID         uuid.UUID `json:"userId"`
	ActivityID     uuid.UUID `json:"activityId"`
	ActivityName   string    `json:"activityName"`
	CanceledAt     time.Time `json:"canceledAt"`
}

// InvitationCreatedEvent is published when a pending invitation is issued.
type InvitationCreatedEvent struct {
	InvitationID uuid.UUID `json:"invitationId"`
	Email        string    `json:"email"`
	CompanyID    uuid.UUID `json:"companyId"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
