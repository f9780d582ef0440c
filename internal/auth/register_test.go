package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/internal/enrollment"
	"github.com/guidely/guidely-backend/internal/registrations"
	"github.com/guidely/guidely-backend/internal/users"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRegisterUserRepo struct {
	byEmail map[string]*models.User
	created []*models.User
}

func newStubRegisterUserRepo() *stubRegisterUserRepo {
	return &stubRegisterUserRepo{byEmail: map[string]*models.User{}}
}

func (r *stubRegisterUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	row, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *stubRegisterUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	row := dto.ToModel()
	row.ID = uuid.New()
	r.byEmail[row.Email] = row
	r.created = append(r.created, row)
	return row, nil
}

type stubInviteLookup struct {
	byToken map[string]*models.UserInvitation
}

func (l *stubInviteLookup) FindByToken(_ context.Context, token string) (*models.UserInvitation, error) {
	row, ok := l.byToken[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

type stubIntents struct {
	intent  *enrollment.Intent
	cleared []string
}

func (s *stubIntents) Peek(_ context.Context, _ string) (*enrollment.Intent, error) {
	return s.intent, nil
}

func (s *stubIntents) Clear(_ context.Context, sessionID string) error {
	s.cleared = append(s.cleared, sessionID)
	return nil
}

type stubRegistrar struct {
	calls []uuid.UUID
	actor authz.Actor
	err   error
}

func (r *stubRegistrar) Register(_ context.Context, actor authz.Actor, activityID uuid.UUID) (*registrations.RegistrationDTO, error) {
	r.calls = append(r.calls, activityID)
	r.actor = actor
	if r.err != nil {
		return nil, r.err
	}
	return &registrations.RegistrationDTO{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		ActivityID: activityID,
	}, nil
}

type registerFixture struct {
	users     *stubRegisterUserRepo
	invites   *stubInviteLookup
	intents   *stubIntents
	registrar *stubRegistrar
	consumed  []string
}

func newRegisterFixture(t *testing.T, intent *enrollment.Intent) (RegisterService, *registerFixture) {
	t.Helper()
	fix := &registerFixture{
		users:     newStubRegisterUserRepo(),
		invites:   &stubInviteLookup{byToken: map[string]*models.UserInvitation{}},
		intents:   &stubIntents{intent: intent},
		registrar: &stubRegistrar{},
	}
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:          stubTxRunner{},
		UserRepoFactory:   func(*gorm.DB) registerUserRepository { return fix.users },
		InviteRepoFactory: func(*gorm.DB) inviteLookup { return fix.invites },
		ConsumeInvite: func(_ context.Context, _ *gorm.DB, token string, userID uuid.UUID) (*models.UserInvitation, error) {
			fix.consumed = append(fix.consumed, token)
			inv := fix.invites.byToken[token]
			now := time.Now().UTC()
			inv.ConsumedAt = &now
			inv.ConsumedBy = &userID
			return inv, nil
		},
		Intents:        fix.intents,
		Registrar:      fix.registrar,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewRegisterService: %v", err)
	}
	return svc, fix
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		Name:     "New User",
		Email:    "New.User@Example.com",
		Password: "long-enough-pass",
	}
}

func TestRegisterWithInvitationIntentPromotesAtBirth(t *testing.T) {
	companyID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindInvitation, Token: "tok-guide"}
	svc, fix := newRegisterFixture(t, intent)
	fix.invites.byToken["tok-guide"] = &models.UserInvitation{
		ID:        uuid.New(),
		Email:     "new.user@example.com",
		Token:     "tok-guide",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	}

	resp, err := svc.Register(context.Background(), validRequest(), "sess-1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != enums.RoleGuide {
		t.Fatalf("expected guide account, got %s", resp.User.Role)
	}
	if resp.User.CompanyID == nil || *resp.User.CompanyID != companyID {
		t.Fatalf("expected invited company on account, got %v", resp.User.CompanyID)
	}
	if len(fix.users.created) != 1 {
		t.Fatalf("expected exactly one user write, got %d", len(fix.users.created))
	}
	if len(fix.consumed) != 1 || fix.consumed[0] != "tok-guide" {
		t.Fatalf("expected token consumed once, got %v", fix.consumed)
	}
	if len(fix.intents.cleared) != 1 || fix.intents.cleared[0] != "sess-1" {
		t.Fatalf("expected intent cleared, got %v", fix.intents.cleared)
	}
	if resp.User.Email != "new.user@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.User.Email)
	}
}

func TestRegisterWithActivityIntentEnrollsAfterCommit(t *testing.T) {
	activityID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindActivity, ActivityID: &activityID}
	svc, fix := newRegisterFixture(t, intent)

	resp, err := svc.Register(context.Background(), validRequest(), "sess-2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != enums.RoleCustomer {
		t.Fatalf("expected customer account, got %s", resp.User.Role)
	}
	if len(fix.registrar.calls) != 1 || fix.registrar.calls[0] != activityID {
		t.Fatalf("expected one enrollment call for %s, got %v", activityID, fix.registrar.calls)
	}
	if fix.registrar.actor.UserID != resp.User.ID {
		t.Fatalf("enrollment ran as the wrong actor")
	}
	if len(fix.intents.cleared) != 1 {
		t.Fatalf("expected intent cleared, got %v", fix.intents.cleared)
	}
}

func TestRegisterActivityIntentFailureDoesNotFailSignup(t *testing.T) {
	activityID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindActivity, ActivityID: &activityID}
	svc, fix := newRegisterFixture(t, intent)
	fix.registrar.err = pkgerrors.New(pkgerrors.CodeConflict, "already registered for this activity")

	resp, err := svc.Register(context.Background(), validRequest(), "sess-3")
	if err != nil {
		t.Fatalf("expected signup to survive enrollment failure, got %v", err)
	}
	if resp.User == nil {
		t.Fatal("expected created user despite enrollment failure")
	}
	if len(fix.intents.cleared) != 1 {
		t.Fatalf("expected intent cleared even on failure, got %v", fix.intents.cleared)
	}
}

func TestRegisterDegradesToCustomerOnBadToken(t *testing.T) {
	intent := &enrollment.Intent{Kind: enrollment.KindInvitation, Token: "tok-missing"}
	svc, fix := newRegisterFixture(t, intent)

	resp, err := svc.Register(context.Background(), validRequest(), "sess-4")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != enums.RoleCustomer || resp.User.CompanyID != nil {
		t.Fatalf("expected degraded customer account, got %s %v", resp.User.Role, resp.User.CompanyID)
	}
	if len(fix.consumed) != 0 {
		t.Fatalf("expected no consume attempt, got %v", fix.consumed)
	}
}

func TestRegisterConsumedTokenDegradesToCustomer(t *testing.T) {
	companyID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindInvitation, Token: "tok-used"}
	svc, fix := newRegisterFixture(t, intent)
	consumedAt := time.Now().UTC().Add(-time.Hour)
	fix.invites.byToken["tok-used"] = &models.UserInvitation{
		ID:         uuid.New(),
		Email:      "new.user@example.com",
		Token:      "tok-used",
		CompanyID:  companyID,
		Role:       enums.RoleGuide,
		ConsumedAt: &consumedAt,
	}

	resp, err := svc.Register(context.Background(), validRequest(), "sess-5")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != enums.RoleCustomer {
		t.Fatalf("expected customer account for used token, got %s", resp.User.Role)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, fix := newRegisterFixture(t, nil)
	fix.users.byEmail["new.user@example.com"] = &models.User{
		ID:    uuid.New(),
		Email: "new.user@example.com",
	}

	_, err := svc.Register(context.Background(), validRequest(), "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterConsumeRaceDegradesToCustomer(t *testing.T) {
	companyID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindInvitation, Token: "tok-raced"}
	fix := &registerFixture{
		users:     newStubRegisterUserRepo(),
		invites:   &stubInviteLookup{byToken: map[string]*models.UserInvitation{}},
		intents:   &stubIntents{intent: intent},
		registrar: &stubRegistrar{},
	}
	fix.invites.byToken["tok-raced"] = &models.UserInvitation{
		ID:        uuid.New(),
		Email:     "new.user@example.com",
		Token:     "tok-raced",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	}
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:          stubTxRunner{},
		UserRepoFactory:   func(*gorm.DB) registerUserRepository { return fix.users },
		InviteRepoFactory: func(*gorm.DB) inviteLookup { return fix.invites },
		ConsumeInvite: func(_ context.Context, _ *gorm.DB, token string, _ uuid.UUID) (*models.UserInvitation, error) {
			fix.consumed = append(fix.consumed, token)
			// The failed attempt rolls back, taking the first user row with it.
			delete(fix.users.byEmail, "new.user@example.com")
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invitation already used")
		},
		Intents:        fix.intents,
		Registrar:      fix.registrar,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewRegisterService: %v", err)
	}

	resp, err := svc.Register(context.Background(), validRequest(), "sess-7")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != enums.RoleCustomer {
		t.Fatalf("expected customer account after losing the race, got %s", resp.User.Role)
	}
	if len(fix.consumed) != 1 {
		t.Fatalf("expected one consume attempt, got %d", len(fix.consumed))
	}
}

func TestRegisterConsumeInfrastructureFailureFailsSignup(t *testing.T) {
	companyID := uuid.New()
	intent := &enrollment.Intent{Kind: enrollment.KindInvitation, Token: "tok-broken"}
	fix := &registerFixture{
		users:     newStubRegisterUserRepo(),
		invites:   &stubInviteLookup{byToken: map[string]*models.UserInvitation{}},
		intents:   &stubIntents{intent: intent},
		registrar: &stubRegistrar{},
	}
	fix.invites.byToken["tok-broken"] = &models.UserInvitation{
		ID:        uuid.New(),
		Email:     "new.user@example.com",
		Token:     "tok-broken",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	}
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner:          stubTxRunner{},
		UserRepoFactory:   func(*gorm.DB) registerUserRepository { return fix.users },
		InviteRepoFactory: func(*gorm.DB) inviteLookup { return fix.invites },
		ConsumeInvite: func(_ context.Context, _ *gorm.DB, token string, _ uuid.UUID) (*models.UserInvitation, error) {
			fix.consumed = append(fix.consumed, token)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, gorm.ErrInvalidDB, "consume invitation")
		},
		Intents:        fix.intents,
		Registrar:      fix.registrar,
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewRegisterService: %v", err)
	}

	// A broken consume is not a race. The signup fails loudly instead of
	// quietly minting a customer account.
	_, err = svc.Register(context.Background(), validRequest(), "sess-8")
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(fix.consumed) != 1 {
		t.Fatalf("expected a single consume attempt, got %d", len(fix.consumed))
	}
	for _, created := range fix.users.created {
		if created.Role == enums.RoleCustomer {
			t.Fatal("no customer account should be minted on infrastructure failure")
		}
	}
}
