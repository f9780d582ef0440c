package invitations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
)

// Repository exposes invitation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an invitations repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateInvitationDTO carries the fields needed to persist an invitation.
type CreateInvitationDTO struct {
	Email     string
	Token     string
	CompanyID uuid.UUID
	Role      enums.Role
}

// Create inserts the invitation row. The partial unique index on pending
// emails makes concurrent duplicates fail here rather than in application
// logic; callers translate that into a Conflict.
func (r *Repository) Create(ctx context.Context, dto CreateInvitationDTO) (*models.UserInvitation, error) {
	row := &models.UserInvitation{
		Email:     dto.Email,
		Token:     dto.Token,
		CompanyID: dto.CompanyID,
		Role:      dto.Role,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// FindByToken loads an invitation by its opaque token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.UserInvitation, error) {
	var row models.UserInvitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByCompany returns all invitations issued for the company, newest first.
func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.UserInvitation, error) {
	var rows []models.UserInvitation
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// Consume marks the invitation consumed by the given user. The guarded
// UPDATE only matches a still-pending row, so two concurrent consumers
// cannot both observe success. Returns the number of rows updated.
func (r *Repository) Consume(ctx context.Context, token string, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserInvitation{}).
		Where("token = ? AND consumed_at IS NULL", token).
		Updates(map[string]any{
			"consumed_at": at,
			"consumed_by": userID,
		})
	return res.RowsAffected, res.Error
}
