package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
	"github.com/guidely/guidely-backend/pkg/mail"
	"github.com/guidely/guidely-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubInviteRepo struct {
	created   *models.UserInvitation
	createErr error
	byToken   map[string]*models.UserInvitation
	listed    []models.UserInvitation
}

func (s *stubInviteRepo) Create(ctx context.Context, dto CreateInvitationDTO) (*models.UserInvitation, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	row := &models.UserInvitation{
		ID:        uuid.New(),
		Email:     dto.Email,
		Token:     dto.Token,
		CompanyID: dto.CompanyID,
		Role:      dto.Role,
		CreatedAt: time.Now().UTC(),
	}
	s.created = row
	return row, nil
}

func (s *stubInviteRepo) FindByToken(ctx context.Context, token string) (*models.UserInvitation, error) {
	if row, ok := s.byToken[token]; ok {
		return row, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubInviteRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.UserInvitation, error) {
	return s.listed, nil
}

type stubCompanyLookup struct {
	company *models.Company
	err     error
}

func (s *stubCompanyLookup) FindByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.company, nil
}

type stubOutbox struct {
	emitted []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.emitted = append(s.emitted, event)
	return nil
}

type stubMailSender struct {
	sent []mail.InviteMessage
}

func (s *stubMailSender) SendInvite(ctx context.Context, msg mail.InviteMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

type inviteTestSetup struct {
	service Service
	repo    *stubInviteRepo
	company *stubCompanyLookup
	outbox  *stubOutbox
	mailer  *stubMailSender
}

func newInviteTestSetup(t *testing.T, companyID uuid.UUID) *inviteTestSetup {
	t.Helper()
	repo := &stubInviteRepo{byToken: map[string]*models.UserInvitation{}}
	company := &stubCompanyLookup{company: &models.Company{ID: companyID, Name: "Alpine Trails"}}
	ob := &stubOutbox{}
	mailer := &stubMailSender{}
	svc, err := NewService(ServiceParams{
		TxRunner:           stubTxRunner{},
		InviteRepoFactory:  func(tx *gorm.DB) invitationRepository { return repo },
		CompanyRepoFactory: func(tx *gorm.DB) companyLookup { return company },
		Outbox:             ob,
		Mail:               mailer,
		InvitesCfg:         config.InvitesConfig{AcceptURL: "https://guidely.app/register"},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &inviteTestSetup{service: svc, repo: repo, company: company, outbox: ob, mailer: mailer}
}

func TestCreateInvitationHappyPath(t *testing.T) {
	companyID := uuid.New()
	setup := newInviteTestSetup(t, companyID)
	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}

	dto, err := setup.service.Create(context.Background(), owner, companyID, CreateInvitationRequest{
		Email: "New.Guide@Example.com",
		Role:  enums.RoleGuide,
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if dto.Email != "new.guide@example.com" {
		t.Fatalf("expected normalized email, got %q", dto.Email)
	}
	if !dto.Pending {
		t.Fatal("expected pending invitation")
	}
	if len(setup.outbox.emitted) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(setup.outbox.emitted))
	}
	if setup.outbox.emitted[0].EventType != enums.EventInvitationCreated {
		t.Fatalf("unexpected event type %s", setup.outbox.emitted[0].EventType)
	}
	if len(setup.mailer.sent) != 1 {
		t.Fatalf("expected one invite email, got %d", len(setup.mailer.sent))
	}
	if setup.mailer.sent[0].CompanyName != "Alpine Trails" {
		t.Fatalf("unexpected company name %q", setup.mailer.sent[0].CompanyName)
	}
}

func TestCreateInvitationForbiddenCrossTenant(t *testing.T) {
	companyID := uuid.New()
	otherCompanyID := uuid.New()
	setup := newInviteTestSetup(t, companyID)
	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &otherCompanyID}

	_, err := setup.service.Create(context.Background(), owner, companyID, CreateInvitationRequest{
		Email: "guide@example.com",
		Role:  enums.RoleGuide,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(setup.mailer.sent) != 0 {
		t.Fatal("no mail should be sent on denial")
	}
}

func TestCreateInvitationRejectsUninvitableRole(t *testing.T) {
	companyID := uuid.New()
	setup := newInviteTestSetup(t, companyID)
	admin := authz.Actor{UserID: uuid.New(), Role: enums.RolePlatformAdmin}

	_, err := setup.service.Create(context.Background(), admin, companyID, CreateInvitationRequest{
		Email: "someone@example.com",
		Role:  enums.RoleCustomer,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateInvitationTranslatesDuplicatePending(t *testing.T) {
	companyID := uuid.New()
	setup := newInviteTestSetup(t, companyID)
	setup.repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: pendingEmailConstraint}
	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}

	_, err := setup.service.Create(context.Background(), owner, companyID, CreateInvitationRequest{
		Email: "guide@example.com",
		Role:  enums.RoleGuide,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(setup.mailer.sent) != 0 {
		t.Fatal("no mail should be sent for duplicate invitations")
	}
}

func TestPreviewStates(t *testing.T) {
	companyID := uuid.New()
	setup := newInviteTestSetup(t, companyID)
	consumedAt := time.Now().UTC()
	setup.repo.byToken["used"] = &models.UserInvitation{
		Token:      "used",
		Email:      "used@example.com",
		CompanyID:  companyID,
		Role:       enums.RoleGuide,
		ConsumedAt: &consumedAt,
	}
	setup.repo.byToken["live"] = &models.UserInvitation{
		Token:     "live",
		Email:     "live@example.com",
		CompanyID: companyID,
		Role:      enums.RoleCompanyOwner,
	}

	if _, err := setup.service.Preview(context.Background(), "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := setup.service.Preview(context.Background(), "used"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	preview, err := setup.service.Preview(context.Background(), "live")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.CompanyName != "Alpine Trails" || preview.Role != enums.RoleCompanyOwner {
		t.Fatalf("unexpected preview %+v", preview)
	}
}
