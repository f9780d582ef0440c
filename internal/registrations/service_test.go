package registrations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/outbox"
	"github.com/guidely/guidely-backend/pkg/outbox/payloads"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRegRepo struct {
	rows      map[string]*models.ActivityRegistration
	createErr error
	deleted   []uuid.UUID
	listRows  []UserActivityRow
}

func regKey(userID, activityID uuid.UUID) string {
	return userID.String() + "/" + activityID.String()
}

func newStubRegRepo() *stubRegRepo {
	return &stubRegRepo{rows: map[string]*models.ActivityRegistration{}}
}

func (r *stubRegRepo) Create(_ context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	row := &models.ActivityRegistration{
		ID:           uuid.New(),
		UserID:       userID,
		ActivityID:   activityID,
		RegisteredAt: time.Now().UTC(),
	}
	r.rows[regKey(userID, activityID)] = row
	return row, nil
}

func (r *stubRegRepo) FindByUserAndActivity(_ context.Context, userID, activityID uuid.UUID) (*models.ActivityRegistration, error) {
	row, ok := r.rows[regKey(userID, activityID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *stubRegRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	for key, row := range r.rows {
		if row.ID == id {
			delete(r.rows, key)
		}
	}
	return nil
}

func (r *stubRegRepo) ListForUser(_ context.Context, _ uuid.UUID) ([]UserActivityRow, error) {
	return r.listRows, nil
}

type stubActivityLookup struct {
	byID map[uuid.UUID]*models.Activity
}

func (l *stubActivityLookup) FindByID(_ context.Context, id uuid.UUID) (*models.Activity, error) {
	row, ok := l.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (o *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func newRegService(t *testing.T, repo *stubRegRepo, lookup *stubActivityLookup, sink *stubOutbox) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		TxRunner:            stubTxRunner{},
		RegRepoFactory:      func(*gorm.DB) registrationRepository { return repo },
		ActivityRepoFactory: func(*gorm.DB) activityLookup { return lookup },
		Outbox:              sink,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterEmitsEventInSameFlow(t *testing.T) {
	activityID := uuid.New()
	companyID := uuid.New()
	repo := newStubRegRepo()
	lookup := &stubActivityLookup{byID: map[uuid.UUID]*models.Activity{
		activityID: {ID: activityID, CompanyID: companyID, Name: "Fjord Cruise", StartTime: time.Now().Add(24 * time.Hour)},
	}}
	sink := &stubOutbox{}
	svc := newRegService(t, repo, lookup, sink)

	actor := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	dto, err := svc.Register(context.Background(), actor, activityID)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dto.UserID != actor.UserID || dto.ActivityID != activityID {
		t.Fatalf("unexpected registration %+v", dto)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(sink.events))
	}
	evt := sink.events[0]
	if evt.EventType != enums.EventActivityRegistered {
		t.Fatalf("unexpected event type %s", evt.EventType)
	}
	payload, ok := evt.Data.(payloads.ActivityRegisteredEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", evt.Data)
	}
	if payload.ActivityName != "Fjord Cruise" || payload.CompanyID != companyID {
		t.Fatalf("payload missing activity detail: %+v", payload)
	}
}

func TestRegisterUnknownActivityNotFound(t *testing.T) {
	repo := newStubRegRepo()
	lookup := &stubActivityLookup{byID: map[uuid.UUID]*models.Activity{}}
	sink := &stubOutbox{}
	svc := newRegService(t, repo, lookup, sink)

	actor := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err := svc.Register(context.Background(), actor, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	activityID := uuid.New()
	repo := newStubRegRepo()
	repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: userActivityConstraint}
	lookup := &stubActivityLookup{byID: map[uuid.UUID]*models.Activity{
		activityID: {ID: activityID, Name: "Fjord Cruise"},
	}}
	sink := &stubOutbox{}
	svc := newRegService(t, repo, lookup, sink)

	actor := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err := svc.Register(context.Background(), actor, activityID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events after conflict, got %d", len(sink.events))
	}
}

func TestRegisterRequiresAuthentication(t *testing.T) {
	svc := newRegService(t, newStubRegRepo(), &stubActivityLookup{}, &stubOutbox{})
	_, err := svc.Register(context.Background(), authz.AnonymousActor(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCancelEmitsEventAndDeletes(t *testing.T) {
	activityID := uuid.New()
	actor := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	repo := newStubRegRepo()
	existing := &models.ActivityRegistration{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		ActivityID: activityID,
	}
	repo.rows[regKey(actor.UserID, activityID)] = existing
	lookup := &stubActivityLookup{byID: map[uuid.UUID]*models.Activity{
		activityID: {ID: activityID, Name: "Fjord Cruise"},
	}}
	sink := &stubOutbox{}
	svc := newRegService(t, repo, lookup, sink)

	if err := svc.Cancel(context.Background(), actor, activityID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != existing.ID {
		t.Fatalf("expected registration %s deleted", existing.ID)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventRegistrationCanceled {
		t.Fatalf("expected cancel event, got %+v", sink.events)
	}
}

func TestCancelAbsentRegistrationIsNoop(t *testing.T) {
	repo := newStubRegRepo()
	sink := &stubOutbox{}
	svc := newRegService(t, repo, &stubActivityLookup{byID: map[uuid.UUID]*models.Activity{}}, sink)

	actor := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	if err := svc.Cancel(context.Background(), actor, uuid.New()); err != nil {
		t.Fatalf("expected idempotent cancel, got %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events for noop cancel, got %d", len(sink.events))
	}
}
