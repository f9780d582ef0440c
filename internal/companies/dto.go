package companies

import (
	"time"

	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/db/models"
)

// CompanyDTO is the transport shape for company records.
type CompanyDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCompanyDTO carries the fields needed to persist a company.
type CreateCompanyDTO struct {
	Name string
}

// UpdateCompanyDTO carries the mutable company fields.
type UpdateCompanyDTO struct {
	Name *string
}

func FromModel(c *models.Company) *CompanyDTO {
	if c == nil {
		return nil
	}
	return &CompanyDTO{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
