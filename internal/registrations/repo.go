package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/pkg/db/models"
)

// Repository exposes enrollment persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a registrations repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the enrollment row. The composite unique index on
// (user_id, activity_id) surfaces duplicate enrollments as a unique
// violation, which the service translates into a conflict.
func (r *Repository) Create(ctx context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error) {
	row := &models.ActivityRegistration{
		UserID:     userID,
		ActivityID: activityID,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// FindByUserAndActivity loads the enrollment pivot row if one exists.
func (r *Repository) FindByUserAndActivity(ctx context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error) {
	var row models.ActivityRegistration
	err := r.db.WithContext(ctx).
		First(&row, "user_id = ? AND activity_id = ?", userID, activityID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes the enrollment row by its id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ActivityRegistration{}, "id = ?", id).Error
}

// UserActivityRow is the join row backing the "my activities" listing.
type UserActivityRow struct {
	RegistrationID uuid.UUID
	RegisteredAt   time.Time
	ActivityID     uuid.UUID
	CompanyID      uuid.UUID
	GuideID        *uuid.UUID
	Name           string
	Description    string
	StartTime      time.Time
	PriceCents     int64
	PhotoRef       *string
}

// ListForUser returns the user's enrollments joined with their activities,
// soonest start time first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]UserActivityRow, error) {
	var rows []UserActivityRow
	err := r.db.WithContext(ctx).
		Table("activity_registrations").
		Select(`activity_registrations.id AS registration_id,
			activity_registrations.registered_at,
			activities.id AS activity_id,
			activities.company_id,
			activities.guide_id,
			activities.name,
			activities.description,
			activities.start_time,
			activities.price_cents,
			activities.photo_ref`).
		Joins("JOIN activities ON activities.id = activity_registrations.activity_id").
		Where("activity_registrations.user_id = ?", userID).
		Order("activities.start_time ASC").
		Order("activities.id ASC").
		Scan(&rows).Error
	return rows, err
}
