package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/activities"
	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/outbox"
	"github.com/guidely/guidely-backend/pkg/outbox/payloads"
)

const (
	duplicateRegistration  = "already registered for this activity"
	userActivityConstraint = "ux_registrations_user_activity"
)

// Service defines the behavior needed by the registrations controller.
type Service interface {
	Register(ctx context.Context, actor authz.Actor, activityID uuid.UUID) (*RegistrationDTO, error)
	Cancel(ctx context.Context, actor authz.Actor, activityID uuid.UUID) error
	ListForUser(ctx context.Context, actor authz.Actor) ([]MyActivityDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registrationRepository interface {
	Create(ctx context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error)
	FindByUserAndActivity(ctx context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]UserActivityRow, error)
}

type activityLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Activity, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build the service.
// Repo factories default to the real GORM-backed repositories.
type ServiceParams struct {
	TxRunner            txRunner
	RegRepoFactory      func(tx *gorm.DB) registrationRepository
	ActivityRepoFactory func(tx *gorm.DB) activityLookup
	Outbox              outboxEmitter
}

type service struct {
	tx           txRunner
	regRepo      func(tx *gorm.DB) registrationRepository
	activityRepo func(tx *gorm.DB) activityLookup
	outbox       outboxEmitter
}

// NewService constructs a registrations service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	regRepo := params.RegRepoFactory
	if regRepo == nil {
		regRepo = func(tx *gorm.DB) registrationRepository { return NewRepository(tx) }
	}
	activityRepo := params.ActivityRepoFactory
	if activityRepo == nil {
		activityRepo = func(tx *gorm.DB) activityLookup { return activities.NewRepository(tx) }
	}
	return &service{
		tx:           params.TxRunner,
		regRepo:      regRepo,
		activityRepo: activityRepo,
		outbox:       params.Outbox,
	}, nil
}

// Register enrolls the acting user into the activity. The enrollment row and
// its outbox event commit in one transaction, so a published event always has
// a committed registration behind it.
func (s *service) Register(ctx context.Context, actor authz.Actor, activityID uuid.UUID) (*RegistrationDTO, error) {
	if actor.Anonymous {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	var created *models.ActivityRegistration
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		activity, err := s.activityRepo(tx).FindByID(ctx, activityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "activity not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup activity")
		}

		row, err := s.regRepo(tx).Create(ctx, actor.UserID, activityID)
		if err != nil {
			if db.IsUniqueViolation(err, userActivityConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, duplicateRegistration)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create registration")
		}
		created = row

		actorRef := &outbox.ActorRef{UserID: actor.UserID, CompanyID: actor.CompanyID, Role: string(actor.Role)}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventActivityRegistered,
			AggregateType: enums.AggregateRegistration,
			AggregateID:   row.ID,
			Actor:         actorRef,
			Version:       1,
			Data: payloads.ActivityRegisteredEvent{
				RegistrationID: row.ID,
				UserID:         row.UserID,
				ActivityID:     activity.ID,
				ActivityName:   activity.Name,
				CompanyID:      activity.CompanyID,
				StartTime:      activity.StartTime,
				RegisteredAt:   row.RegisteredAt,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "register for activity")
	}
	return FromModel(created), nil
}

// Cancel removes the acting user's own enrollment. Canceling an enrollment
// that does not exist succeeds without emitting anything, so retried cancels
// are harmless.
func (s *service) Cancel(ctx context.Context, actor authz.Actor, activityID uuid.UUID) error {
	if actor.Anonymous {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.regRepo(tx).FindByUserAndActivity(ctx, actor.UserID, activityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup registration")
		}

		activity, err := s.activityRepo(tx).FindByID(ctx, activityID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup activity")
		}
		activityName := ""
		if activity != nil {
			activityName = activity.Name
		}

		if err := s.regRepo(tx).Delete(ctx, row.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete registration")
		}

		actorRef := &outbox.ActorRef{UserID: actor.UserID, CompanyID: actor.CompanyID, Role: string(actor.Role)}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationCanceled,
			AggregateType: enums.AggregateRegistration,
			AggregateID:   row.ID,
			Actor:         actorRef,
			Version:       1,
			Data: payloads.RegistrationCanceledEvent{
				RegistrationID: row.ID,
				UserID:         row.UserID,
				ActivityID:     row.ActivityID,
				ActivityName:   activityName,
				CanceledAt:     time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel registration")
	}
	return nil
}

// ListForUser serves the acting user's schedule, soonest first.
func (s *service) ListForUser(ctx context.Context, actor authz.Actor) ([]MyActivityDTO, error) {
	if actor.Anonymous {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	var out []MyActivityDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.regRepo(tx).ListForUser(ctx, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list registrations")
		}
		out = make([]MyActivityDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, MyActivityDTO{
				RegistrationID: row.RegistrationID,
				ActivityID:     row.ActivityID,
				CompanyID:      row.CompanyID,
				Name:           row.Name,
				Description:    row.Description,
				StartTime:      row.StartTime,
				PriceCents:     row.PriceCents,
				PhotoRef:       row.PhotoRef,
				RegisteredAt:   row.RegisteredAt,
				GuideID:        row.GuideID,
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list registrations")
	}
	return out, nil
}
