package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/internal/users"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

const forbiddenMessage = "you are not allowed to perform this action"

// Service defines the behavior needed by the activities controller.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, companyID uuid.UUID, req CreateActivityRequest) (*ActivityDTO, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ActivityDTO, error)
	ListUpcoming(ctx context.Context, limit int) ([]ActivityDTO, error)
	ListForCompany(ctx context.Context, actor authz.Actor, companyID uuid.UUID) ([]ActivityDTO, error)
	ListForGuide(ctx context.Context, actor authz.Actor) ([]ActivityDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req UpdateActivityRequest) (*ActivityDTO, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
}

type activityRepository interface {
	Create(ctx context.Context, dto CreateActivityDTO) (*models.Activity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Activity, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Activity, error)
	ListForGuide(ctx context.Context, guideID uuid.UUID) ([]models.Activity, error)
	ListUpcoming(ctx context.Context, after time.Time, limit int) ([]models.Activity, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Activity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo  activityRepository
	Users userLookup
}

type service struct {
	repo  activityRepository
	users userLookup
}

// NewService constructs an activities service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("activities repository is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users lookup is required")
	}
	return &service{repo: params.Repo, users: params.Users}, nil
}

// NewServiceFromDB wires the service against the GORM-backed repositories.
func NewServiceFromDB(db *gorm.DB) (Service, error) {
	return NewService(ServiceParams{
		Repo:  NewRepository(db),
		Users: users.NewRepository(db),
	})
}

func (s *service) Create(ctx context.Context, actor authz.Actor, companyID uuid.UUID, req CreateActivityRequest) (*ActivityDTO, error) {
	if !authz.Can(actor, authz.ActionCreate, authz.ActivityResource(companyID, nil)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "activity name is required")
	}
	if req.StartTime.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start_time is required")
	}
	if req.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents cannot be negative")
	}
	if req.GuideID != nil {
		if err := s.validateGuide(ctx, *req.GuideID, companyID); err != nil {
			return nil, err
		}
	}

	row, err := s.repo.Create(ctx, CreateActivityDTO{
		CompanyID:   companyID,
		GuideID:     req.GuideID,
		Name:        name,
		Description: req.Description,
		StartTime:   req.StartTime,
		PriceCents:  req.PriceCents,
		PhotoRef:    req.PhotoRef,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create activity")
	}
	return FromModel(row), nil
}

// Get serves the public activity detail page; any actor may view.
func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*ActivityDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "activity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup activity")
	}
	if !authz.Can(actor, authz.ActionView, authz.ActivityResource(row.CompanyID, row.GuideID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	return FromModel(row), nil
}

func (s *service) ListUpcoming(ctx context.Context, limit int) ([]ActivityDTO, error) {
	rows, err := s.repo.ListUpcoming(ctx, time.Now().UTC(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list upcoming activities")
	}
	return toDTOs(rows), nil
}

func (s *service) ListForCompany(ctx context.Context, actor authz.Actor, companyID uuid.UUID) ([]ActivityDTO, error) {
	if !authz.Can(actor, authz.ActionViewAny, authz.ActivityResource(companyID, nil)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	rows, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list company activities")
	}
	return toDTOs(rows), nil
}

// ListForGuide returns the acting guide's own schedule.
func (s *service) ListForGuide(ctx context.Context, actor authz.Actor) ([]ActivityDTO, error) {
	if actor.Anonymous || actor.Role != enums.RoleGuide {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	rows, err := s.repo.ListForGuide(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list guide activities")
	}
	return toDTOs(rows), nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req UpdateActivityRequest) (*ActivityDTO, error) {
	row, err := s.loadForWrite(ctx, actor, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "activity name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.StartTime != nil {
		updates["start_time"] = *req.StartTime
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_cents cannot be negative")
		}
		updates["price_cents"] = *req.PriceCents
	}
	if req.PhotoRef != nil {
		updates["photo_ref"] = *req.PhotoRef
	}
	switch {
	case req.ClearGuide:
		updates["guide_id"] = nil
	case req.GuideID != nil:
		if err := s.validateGuide(ctx, *req.GuideID, row.CompanyID); err != nil {
			return nil, err
		}
		updates["guide_id"] = *req.GuideID
	}

	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update activity")
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if _, err := s.loadForWrite(ctx, actor, id, authz.ActionDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete activity")
	}
	return nil
}

// loadForWrite fetches the row and applies the authorization rule. A missing
// id yields the same Forbidden outcome a cross-tenant probe gets, except for
// platform admins who may see NotFound.
func (s *service) loadForWrite(ctx context.Context, actor authz.Actor, id uuid.UUID, action authz.Action) (*models.Activity, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !actor.Anonymous && actor.Role == enums.RolePlatformAdmin {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "activity not found")
			}
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup activity")
	}
	if !authz.Can(actor, action, authz.ActivityResource(row.CompanyID, row.GuideID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	return row, nil
}

func (s *service) validateGuide(ctx context.Context, guideID, companyID uuid.UUID) error {
	guide, err := s.users.FindByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "guide not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup guide")
	}
	if guide.Role != enums.RoleGuide || guide.CompanyID == nil || *guide.CompanyID != companyID {
		return pkgerrors.New(pkgerrors.CodeValidation, "guide must belong to the same company")
	}
	return nil
}

func toDTOs(rows []models.Activity) []ActivityDTO {
	out := make([]ActivityDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
