package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/activities"
	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/internal/users"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

const (
	forbiddenMessage = "you are not allowed to perform this action"
	notFoundMessage  = "member not found"
)

// Service manages a company's member roster. Members join through
// invitations; this service covers listing them, changing their role, and
// detaching them from the company.
type Service interface {
	List(ctx context.Context, actor authz.Actor, companyID uuid.UUID, role *enums.Role) ([]users.UserDTO, error)
	UpdateRole(ctx context.Context, actor authz.Actor, companyID, userID uuid.UUID, role enums.Role) (*users.UserDTO, error)
	Remove(ctx context.Context, actor authz.Actor, companyID, userID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type memberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.User, error)
	ListByCompanyRole(ctx context.Context, companyID uuid.UUID, role enums.Role) ([]models.User, error)
	Promote(ctx context.Context, id uuid.UUID, role enums.Role, companyID *uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build the service.
// The repo factory defaults to the real GORM-backed users repository.
type ServiceParams struct {
	TxRunner         txRunner
	UserRepoFactory  func(tx *gorm.DB) memberRepository
	ClearAssignments func(ctx context.Context, tx *gorm.DB, guideID uuid.UUID) error
}

type service struct {
	tx               txRunner
	userRepo         func(tx *gorm.DB) memberRepository
	clearAssignments func(ctx context.Context, tx *gorm.DB, guideID uuid.UUID) error
}

// NewService constructs a members service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	userRepo := params.UserRepoFactory
	if userRepo == nil {
		userRepo = func(tx *gorm.DB) memberRepository { return users.NewRepository(tx) }
	}
	clearAssignments := params.ClearAssignments
	if clearAssignments == nil {
		clearAssignments = activities.ClearGuideAssignments
	}
	return &service{
		tx:               params.TxRunner,
		userRepo:         userRepo,
		clearAssignments: clearAssignments,
	}, nil
}

// memberRole reports whether the role is one a company member can hold.
func memberRole(role enums.Role) bool {
	return role == enums.RoleCompanyOwner || role == enums.RoleGuide
}

// List returns the company roster, optionally narrowed to one role.
func (s *service) List(ctx context.Context, actor authz.Actor, companyID uuid.UUID, role *enums.Role) ([]users.UserDTO, error) {
	if !authz.Can(actor, authz.ActionViewAny, authz.MembershipResource(companyID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	if role != nil && !memberRole(*role) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be company_owner or guide")
	}

	var out []users.UserDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.userRepo(tx)
		var rows []models.User
		var err error
		if role != nil {
			rows, err = repo.ListByCompanyRole(ctx, companyID, *role)
		} else {
			rows, err = repo.ListByCompany(ctx, companyID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list members")
		}
		out = make([]users.UserDTO, 0, len(rows))
		for i := range rows {
			out = append(out, *users.FromModel(&rows[i]))
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list members")
	}
	return out, nil
}

// UpdateRole moves a member between the company roles. Demoting a guide
// detaches them from their activities in the same transaction so no activity
// keeps a guide reference to someone who no longer holds the role.
func (s *service) UpdateRole(ctx context.Context, actor authz.Actor, companyID, userID uuid.UUID, role enums.Role) (*users.UserDTO, error) {
	if !authz.Can(actor, authz.ActionUpdate, authz.MembershipResource(companyID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	if !memberRole(role) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be company_owner or guide")
	}

	var updated *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.userRepo(tx)
		member, err := s.findMember(ctx, repo, companyID, userID)
		if err != nil {
			return err
		}
		if member.Role == enums.RoleGuide && role != enums.RoleGuide {
			if err := s.clearAssignments(ctx, tx, member.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear guide assignments")
			}
		}
		if err := repo.Promote(ctx, member.ID, role, &companyID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update member role")
		}
		updated, err = repo.FindByID(ctx, member.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload member")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update member role")
	}
	return users.FromModel(updated), nil
}

// Remove detaches the member from the company. The account survives as a
// plain customer. Removing a guide also clears their activity assignments in
// the same transaction, so a concurrent guide reassignment cannot leave an
// activity pointing at a detached guide.
func (s *service) Remove(ctx context.Context, actor authz.Actor, companyID, userID uuid.UUID) error {
	if !authz.Can(actor, authz.ActionDelete, authz.MembershipResource(companyID)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	if !actor.Anonymous && actor.UserID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot remove your own membership")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.userRepo(tx)
		member, err := s.findMember(ctx, repo, companyID, userID)
		if err != nil {
			return err
		}
		if member.Role == enums.RoleGuide {
			if err := s.clearAssignments(ctx, tx, member.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear guide assignments")
			}
		}
		if err := repo.Promote(ctx, member.ID, enums.RoleCustomer, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach member")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove member")
	}
	return nil
}

// findMember loads the user and confirms they belong to the company. A user
// outside the company reads as absent, the same as an unknown id.
func (s *service) findMember(ctx context.Context, repo memberRepository, companyID, userID uuid.UUID) (*models.User, error) {
	member, err := repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup member")
	}
	if member.CompanyID == nil || *member.CompanyID != companyID || !memberRole(member.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, notFoundMessage)
	}
	return member, nil
}
