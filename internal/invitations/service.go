package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/internal/companies"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/logger"
	"github.com/guidely/guidely-backend/pkg/mail"
	"github.com/guidely/guidely-backend/pkg/outbox"
	"github.com/guidely/guidely-backend/pkg/outbox/payloads"
	"github.com/guidely/guidely-backend/pkg/security"
)

const (
	forbiddenMessage         = "you are not allowed to perform this action"
	duplicateInvitationError = "invitation already requested for this email"
	pendingEmailConstraint   = "ux_user_invitations_pending_email"
)

// Service defines the behavior needed by the invitations controller.
type Service interface {
	Create(ctx context.Context, actor authz.Actor, companyID uuid.UUID, req CreateInvitationRequest) (*InvitationDTO, error)
	ListForCompany(ctx context.Context, actor authz.Actor, companyID uuid.UUID) ([]InvitationDTO, error)
	Preview(ctx context.Context, token string) (*InvitePreviewDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type invitationRepository interface {
	Create(ctx context.Context, dto CreateInvitationDTO) (*models.UserInvitation, error)
	FindByToken(ctx context.Context, token string) (*models.UserInvitation, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.UserInvitation, error)
}

type companyLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build the service.
// Repo factories default to the real GORM-backed repositories.
type ServiceParams struct {
	TxRunner           txRunner
	InviteRepoFactory  func(tx *gorm.DB) invitationRepository
	CompanyRepoFactory func(tx *gorm.DB) companyLookup
	Outbox             outboxEmitter
	Mail               mail.Sender
	InvitesCfg         config.InvitesConfig
	Logger             *logger.Logger
}

type service struct {
	tx          txRunner
	inviteRepo  func(tx *gorm.DB) invitationRepository
	companyRepo func(tx *gorm.DB) companyLookup
	outbox      outboxEmitter
	mail        mail.Sender
	invitesCfg  config.InvitesConfig
	logg        *logger.Logger
}

// NewService constructs an invitations service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	if params.Mail == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	inviteRepo := params.InviteRepoFactory
	if inviteRepo == nil {
		inviteRepo = func(tx *gorm.DB) invitationRepository { return NewRepository(tx) }
	}
	companyRepo := params.CompanyRepoFactory
	if companyRepo == nil {
		companyRepo = func(tx *gorm.DB) companyLookup { return companies.NewRepository(tx) }
	}
	return &service{
		tx:          params.TxRunner,
		inviteRepo:  inviteRepo,
		companyRepo: companyRepo,
		outbox:      params.Outbox,
		mail:        params.Mail,
		invitesCfg:  params.InvitesCfg,
		logg:        params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, actor authz.Actor, companyID uuid.UUID, req CreateInvitationRequest) (*InvitationDTO, error) {
	if !authz.Can(actor, authz.ActionCreate, authz.MembershipResource(companyID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.Role.Invitable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("role %q cannot be invited", req.Role))
	}

	token, err := security.GenerateInviteToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite token")
	}

	var created *models.UserInvitation
	var companyName string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		company, err := s.companyRepo(tx).FindByID(ctx, companyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup company")
		}
		companyName = company.Name

		row, err := s.inviteRepo(tx).Create(ctx, CreateInvitationDTO{
			Email:     email,
			Token:     token,
			CompanyID: companyID,
			Role:      req.Role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, pendingEmailConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, duplicateInvitationError)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invitation")
		}
		created = row

		actorRef := &outbox.ActorRef{UserID: actor.UserID, CompanyID: actor.CompanyID, Role: string(actor.Role)}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationCreated,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   row.ID,
			Actor:         actorRef,
			Version:       1,
			Data: payloads.InvitationCreatedEvent{
				InvitationID: row.ID,
				Email:        row.Email,
				CompanyID:    row.CompanyID,
				Role:         string(row.Role),
				CreatedAt:    row.CreatedAt,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create invitation")
	}

	s.sendInviteEmail(ctx, created, companyName, token)

	return FromModel(created), nil
}

// sendInviteEmail runs after the row is committed. Delivery failure is logged
// and never unwinds the invitation itself.
func (s *service) sendInviteEmail(ctx context.Context, inv *models.UserInvitation, companyName, token string) {
	acceptURL, err := mail.BuildAcceptURL(s.invitesCfg, token)
	if err == nil {
		err = s.mail.SendInvite(ctx, mail.InviteMessage{
			To:          inv.Email,
			CompanyName: companyName,
			Role:        string(inv.Role),
			AcceptURL:   acceptURL,
		})
	}
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"invitation_id": inv.ID.String(),
			"email":         inv.Email,
		})
		s.logg.Warn(logCtx, "invitation email delivery failed: "+err.Error())
	}
}

func (s *service) ListForCompany(ctx context.Context, actor authz.Actor, companyID uuid.UUID) ([]InvitationDTO, error) {
	if !authz.Can(actor, authz.ActionViewAny, authz.MembershipResource(companyID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, forbiddenMessage)
	}
	var out []InvitationDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.inviteRepo(tx).ListByCompany(ctx, companyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invitations")
		}
		out = make([]InvitationDTO, 0, len(rows))
		for i := range rows {
			out = append(out, *FromModel(&rows[i]))
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invitations")
	}
	return out, nil
}

// Preview resolves an invitation token for the public accept page.
func (s *service) Preview(ctx context.Context, token string) (*InvitePreviewDTO, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	var preview *InvitePreviewDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		inv, err := s.inviteRepo(tx).FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup invitation")
		}
		if !inv.Pending() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invitation already used")
		}
		company, err := s.companyRepo(tx).FindByID(ctx, inv.CompanyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup inviting company")
		}
		preview = &InvitePreviewDTO{
			Email:       inv.Email,
			CompanyID:   inv.CompanyID,
			CompanyName: company.Name,
			Role:        inv.Role,
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "preview invitation")
	}
	return preview, nil
}

// Consume marks the invitation consumed inside the caller's transaction and
// returns the invitation row. The guarded UPDATE distinguishes an exhausted
// token (already used) from an unknown one.
func Consume(ctx context.Context, tx *gorm.DB, token string, userID uuid.UUID) (*models.UserInvitation, error) {
	repo := NewRepository(tx)
	affected, err := repo.Consume(ctx, token, userID, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume invitation")
	}
	if affected == 0 {
		if _, err := repo.FindByToken(ctx, token); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup invitation")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation already used")
	}
	return repo.FindByToken(ctx, token)
}
