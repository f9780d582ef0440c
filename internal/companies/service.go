package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/db/models"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

const forbiddenMessage = "you are not allowed to perform this action"

// Service defines the behavior needed by the companies controller.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, req CreateCompanyDTO) (*CompanyDTO, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*CompanyDTO, error)
	List(ctx context.Context, actor authz.Actor) ([]CompanyDTO, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req UpdateCompanyDTO) (*CompanyDTO, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
}

type companyRepository interface {
	Create(ctx context.Context, dto CreateCompanyDTO) (*models.Company, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	List(ctx context.Context) ([]models.Company, error)
	Update(ctx context.Context, id uuid.UUID, dto UpdateCompanyDTO) (*models.Company, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo companyRepository
}

// NewService constructs a companies service with the provided repository.
func NewService(repo companyRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("companies repository is required")
	}
	return &service{repo: repo}, nil
}

// Create provisions a new tenant. Only platform admins may do this; owner
// accounts for the tenant arrive later through invitations.
func (s *service) Create(ctx context.Context, actor authz.Actor, req CreateCompanyDTO) (*CompanyDTO, error) {
	if !authz.Can(actor, authz.ActionCreate, authz.CompanyResource(uuid.Nil)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
	}
	company, err := s.repo.Create(ctx, CreateCompanyDTO{Name: name})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create company")
	}
	return FromModel(company), nil
}

func (s *service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*CompanyDTO, error) {
	// Denial is checked before the lookup so a cross-tenant probe cannot
	// distinguish a missing id from a forbidden one.
	if !authz.Can(actor, authz.ActionView, authz.CompanyResource(id)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	company, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup company")
	}
	return FromModel(company), nil
}

func (s *service) List(ctx context.Context, actor authz.Actor) ([]CompanyDTO, error) {
	if !authz.Can(actor, authz.ActionViewAny, authz.CompanyResource(uuid.Nil)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list companies")
	}
	out := make([]CompanyDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, req UpdateCompanyDTO) (*CompanyDTO, error) {
	if !authz.Can(actor, authz.ActionUpdate, authz.CompanyResource(id)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name cannot be empty")
	}
	company, err := s.repo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update company")
	}
	return FromModel(company), nil
}

// Delete retires a tenant. Company lifecycle is platform-admin only, so the
// check targets the nil company the same way Create does: owners never match.
func (s *service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if !authz.Can(actor, authz.ActionDelete, authz.CompanyResource(uuid.Nil)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete company")
	}
	return nil
}
