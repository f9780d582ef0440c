package activities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/pkg/db/models"
)

// Repository exposes activity persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an activities repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateActivityDTO carries the fields needed to persist an activity.
type CreateActivityDTO struct {
	CompanyID   uuid.UUID
	GuideID     *uuid.UUID
	Name        string
	Description string
	StartTime   time.Time
	PriceCents  int64
	PhotoRef    *string
}

// Create inserts the activity row.
func (r *Repository) Create(ctx context.Context, dto CreateActivityDTO) (*models.Activity, error) {
	row := &models.Activity{
		CompanyID:   dto.CompanyID,
		GuideID:     dto.GuideID,
		Name:        dto.Name,
		Description: dto.Description,
		StartTime:   dto.StartTime,
		PriceCents:  dto.PriceCents,
		PhotoRef:    dto.PhotoRef,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// FindByID loads an activity by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Activity, error) {
	var row models.Activity
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByCompany returns the company's activities ordered by start time.
func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Activity, error) {
	var rows []models.Activity
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("start_time ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListForGuide returns activities assigned to the guide ordered by start time.
func (r *Repository) ListForGuide(ctx context.Context, guideID uuid.UUID) ([]models.Activity, error) {
	var rows []models.Activity
	err := r.db.WithContext(ctx).
		Where("guide_id = ?", guideID).
		Order("start_time ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListUpcoming returns public activities starting after the cutoff.
func (r *Repository) ListUpcoming(ctx context.Context, after time.Time, limit int) ([]models.Activity, error) {
	var rows []models.Activity
	q := r.db.WithContext(ctx).
		Where("start_time > ?", after).
		Order("start_time ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Update applies the provided column updates and returns the refreshed row.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Activity, error) {
	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&models.Activity{}).
			Where("id = ?", id).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

// Delete removes the activity row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Activity{}, "id = ?", id).Error
}

// ClearGuideAssignments detaches the guide from every activity referencing
// them. Runs inside the member-removal transaction.
func ClearGuideAssignments(ctx context.Context, tx *gorm.DB, guideID uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&models.Activity{}).
		Where("guide_id = ?", guideID).
		UpdateColumn("guide_id", nil).Error
}
