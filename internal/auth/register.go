package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/internal/enrollment"
	"github.com/guidely/guidely-backend/internal/invitations"
	"github.com/guidely/guidely-backend/internal/registrations"
	"github.com/guidely/guidely-backend/internal/users"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/logger"
	"github.com/guidely/guidely-backend/pkg/security"
)

const (
	duplicateEmailMessage = "email already registered"
	userEmailConstraint   = "ux_users_email"
)

// errInviteRaced signals that the invitation was consumed between our lookup
// and the guarded update, so the signup retries on the customer path.
var errInviteRaced = errors.New("invitation consumed concurrently")

// RegisterService handles account creation and deferred enrollment.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest, sessionID string) (*RegisterResponse, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type inviteLookup interface {
	FindByToken(ctx context.Context, token string) (*models.UserInvitation, error)
}

type intentSource interface {
	Peek(ctx context.Context, sessionID string) (*enrollment.Intent, error)
	Clear(ctx context.Context, sessionID string) error
}

type activityRegistrar interface {
	Register(ctx context.Context, actor authz.Actor, activityID uuid.UUID) (*registrations.RegistrationDTO, error)
}

type inviteConsumer func(ctx context.Context, tx *gorm.DB, token string, userID uuid.UUID) (*models.UserInvitation, error)

// RegisterServiceParams packages the dependencies for the registration flow.
// Repo factories default to the real GORM-backed repositories.
type RegisterServiceParams struct {
	TxRunner          txRunner
	UserRepoFactory   func(tx *gorm.DB) registerUserRepository
	InviteRepoFactory func(tx *gorm.DB) inviteLookup
	ConsumeInvite     inviteConsumer
	Intents           intentSource
	Registrar         activityRegistrar
	PasswordConfig    config.PasswordConfig
	Logger            *logger.Logger
}

type registerService struct {
	tx            txRunner
	userRepo      func(tx *gorm.DB) registerUserRepository
	inviteRepo    func(tx *gorm.DB) inviteLookup
	consumeInvite inviteConsumer
	intents       intentSource
	registrar     activityRegistrar
	passwordCfg   config.PasswordConfig
	logg          *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("intent store is required")
	}
	if params.Registrar == nil {
		return nil, fmt.Errorf("activity registrar is required")
	}
	userRepo := params.UserRepoFactory
	if userRepo == nil {
		userRepo = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	inviteRepo := params.InviteRepoFactory
	if inviteRepo == nil {
		inviteRepo = func(tx *gorm.DB) inviteLookup { return invitations.NewRepository(tx) }
	}
	consume := params.ConsumeInvite
	if consume == nil {
		consume = invitations.Consume
	}
	return &registerService{
		tx:            params.TxRunner,
		userRepo:      userRepo,
		inviteRepo:    inviteRepo,
		consumeInvite: consume,
		intents:       params.Intents,
		registrar:     params.Registrar,
		passwordCfg:   params.PasswordConfig,
		logg:          params.Logger,
	}, nil
}

// Register creates the account in one transaction. An invitation intent is
// resolved inside that transaction: the user row is written once, already
// carrying the invited role and company. An invalid or used token degrades
// the signup to a customer account instead of failing it. An activity intent
// is resolved after commit and is likewise non-fatal.
func (s *registerService) Register(ctx context.Context, req RegisterRequest, sessionID string) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var warnings error
	intent := s.peekIntent(ctx, sessionID, &warnings)

	user, err := s.createUser(ctx, email, name, passwordHash, intent, &warnings)
	if errors.Is(err, errInviteRaced) {
		warnings = multierr.Append(warnings, fmt.Errorf("invitation token raced to consumption, account degraded to customer"))
		user, err = s.createUser(ctx, email, name, passwordHash, nil, &warnings)
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create account")
	}

	s.resolveActivityIntent(ctx, user, intent, &warnings)

	if sessionID != "" {
		if err := s.intents.Clear(ctx, sessionID); err != nil {
			warnings = multierr.Append(warnings, fmt.Errorf("clear pending intent: %w", err))
		}
	}

	s.logWarnings(ctx, user, warnings)

	return &RegisterResponse{User: users.FromModel(user)}, nil
}

func (s *registerService) createUser(ctx context.Context, email, name, passwordHash string, intent *enrollment.Intent, warnings *error) (*models.User, error) {
	var created *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.userRepo(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, duplicateEmailMessage)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		role := enums.RoleCustomer
		var companyID *uuid.UUID
		var invite *models.UserInvitation

		if intent != nil && intent.Kind == enrollment.KindInvitation {
			inv, err := s.inviteRepo(tx).FindByToken(ctx, intent.Token)
			switch {
			case err == nil && inv.Pending():
				invite = inv
				role = inv.Role
				id := inv.CompanyID
				companyID = &id
			case err == nil:
				*warnings = multierr.Append(*warnings, fmt.Errorf("invitation token already used, account degraded to customer"))
			case errors.Is(err, gorm.ErrRecordNotFound):
				*warnings = multierr.Append(*warnings, fmt.Errorf("invitation token not found, account degraded to customer"))
			default:
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup invitation")
			}
		}

		user, err := repo.Create(ctx, users.CreateUserDTO{
			Name:         name,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
			CompanyID:    companyID,
		})
		if err != nil {
			if db.IsUniqueViolation(err, userEmailConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, duplicateEmailMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if invite != nil {
			if _, err := s.consumeInvite(ctx, tx, invite.Token, user.ID); err != nil {
				// Only a lost race degrades the signup. An infrastructure
				// failure has to surface, not mint a customer account.
				if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
					return errInviteRaced
				}
				if typed := pkgerrors.As(err); typed != nil {
					return typed
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume invitation")
			}
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *registerService) peekIntent(ctx context.Context, sessionID string, warnings *error) *enrollment.Intent {
	if sessionID == "" {
		return nil
	}
	intent, err := s.intents.Peek(ctx, sessionID)
	if err != nil {
		*warnings = multierr.Append(*warnings, fmt.Errorf("load pending intent: %w", err))
		return nil
	}
	return intent
}

// resolveActivityIntent runs after the account commits, so a failed
// enrollment never unwinds the signup.
func (s *registerService) resolveActivityIntent(ctx context.Context, user *models.User, intent *enrollment.Intent, warnings *error) {
	if intent == nil || intent.Kind != enrollment.KindActivity || intent.ActivityID == nil {
		return
	}
	actor := authz.Actor{UserID: user.ID, Role: user.Role, CompanyID: user.CompanyID}
	if _, err := s.registrar.Register(ctx, actor, *intent.ActivityID); err != nil {
		*warnings = multierr.Append(*warnings, fmt.Errorf("resolve activity intent %s: %w", intent.ActivityID, err))
	}
}

func (s *registerService) logWarnings(ctx context.Context, user *models.User, warnings error) {
	if warnings == nil || s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})
	s.logg.Warn(logCtx, "signup completed with warnings: "+warnings.Error())
}
