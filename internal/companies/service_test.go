package companies

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/internal/authz"
	"github.com/guidely/guidely-backend/pkg/db/models"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

type stubCompanyRepo struct {
	byID    map[uuid.UUID]*models.Company
	created []CreateCompanyDTO
}

func newStubCompanyRepo() *stubCompanyRepo {
	return &stubCompanyRepo{byID: map[uuid.UUID]*models.Company{}}
}

func (r *stubCompanyRepo) Create(_ context.Context, dto CreateCompanyDTO) (*models.Company, error) {
	r.created = append(r.created, dto)
	row := &models.Company{
		ID:        uuid.New(),
		Name:      dto.Name,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.byID[row.ID] = row
	return row, nil
}

func (r *stubCompanyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Company, error) {
	row, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *stubCompanyRepo) List(_ context.Context) ([]models.Company, error) {
	var out []models.Company
	for _, row := range r.byID {
		out = append(out, *row)
	}
	return out, nil
}

func (r *stubCompanyRepo) Update(_ context.Context, id uuid.UUID, dto UpdateCompanyDTO) (*models.Company, error) {
	row, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if dto.Name != nil {
		row.Name = *dto.Name
	}
	return row, nil
}

func (r *stubCompanyRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.byID, id)
	return nil
}

func adminActor() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RolePlatformAdmin}
}

func companyOwnerActor(companyID uuid.UUID) authz.Actor {
	return authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}
}

func newTestService(t *testing.T, repo *stubCompanyRepo) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateRequiresPlatformAdmin(t *testing.T) {
	repo := newStubCompanyRepo()
	svc := newTestService(t, repo)

	_, err := svc.Create(context.Background(), companyOwnerActor(uuid.New()), CreateCompanyDTO{Name: "Alpine Tours"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no company created, got %d", len(repo.created))
	}

	company, err := svc.Create(context.Background(), adminActor(), CreateCompanyDTO{Name: "  Alpine Tours  "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if company.Name != "Alpine Tours" {
		t.Fatalf("expected trimmed name, got %q", company.Name)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := newTestService(t, newStubCompanyRepo())

	_, err := svc.Create(context.Background(), adminActor(), CreateCompanyDTO{Name: "   "})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetDeniesCrossTenantBeforeLookup(t *testing.T) {
	repo := newStubCompanyRepo()
	svc := newTestService(t, repo)

	mine, err := repo.Create(context.Background(), CreateCompanyDTO{Name: "Mine"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	other, err := repo.Create(context.Background(), CreateCompanyDTO{Name: "Theirs"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	owner := companyOwnerActor(mine.ID)
	got, err := svc.Get(context.Background(), owner, mine.ID)
	if err != nil {
		t.Fatalf("Get own company: %v", err)
	}
	if got.ID != mine.ID {
		t.Fatalf("expected company %s, got %s", mine.ID, got.ID)
	}

	// Cross-tenant reads and reads of missing ids both come back forbidden,
	// so an owner cannot probe which company ids exist.
	if _, err := svc.Get(context.Background(), owner, other.ID); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for cross-tenant read, got %v", err)
	}
	if _, err := svc.Get(context.Background(), owner, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for unknown id, got %v", err)
	}
}

func TestGetNotFoundForAdmin(t *testing.T) {
	svc := newTestService(t, newStubCompanyRepo())

	_, err := svc.Get(context.Background(), adminActor(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRestrictedToPlatformAdmin(t *testing.T) {
	repo := newStubCompanyRepo()
	svc := newTestService(t, repo)

	for _, name := range []string{"One", "Two"} {
		if _, err := repo.Create(context.Background(), CreateCompanyDTO{Name: name}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := svc.List(context.Background(), adminActor())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 companies, got %d", len(rows))
	}

	if _, err := svc.List(context.Background(), companyOwnerActor(uuid.New())); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for owner list, got %v", err)
	}
}

func TestUpdateOwnerRenamesOwnCompany(t *testing.T) {
	repo := newStubCompanyRepo()
	svc := newTestService(t, repo)

	company, err := repo.Create(context.Background(), CreateCompanyDTO{Name: "Before"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	name := "After"
	got, err := svc.Update(context.Background(), companyOwnerActor(company.ID), company.ID, UpdateCompanyDTO{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != "After" {
		t.Fatalf("expected renamed company, got %q", got.Name)
	}

	blank := "   "
	if _, err := svc.Update(context.Background(), companyOwnerActor(company.ID), company.ID, UpdateCompanyDTO{Name: &blank}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestDeleteRestrictedToPlatformAdmin(t *testing.T) {
	repo := newStubCompanyRepo()
	svc := newTestService(t, repo)

	company, err := repo.Create(context.Background(), CreateCompanyDTO{Name: "Retiring"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Owners cannot delete their own tenant; company lifecycle is a
	// platform operation.
	if err := svc.Delete(context.Background(), companyOwnerActor(company.ID), company.ID); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for owner delete, got %v", err)
	}
	if _, ok := repo.byID[company.ID]; !ok {
		t.Fatal("company should survive a denied delete")
	}

	if err := svc.Delete(context.Background(), adminActor(), company.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := repo.byID[company.ID]; ok {
		t.Fatal("company should be gone after delete")
	}

	if err := svc.Delete(context.Background(), adminActor(), company.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for repeated delete, got %v", err)
	}
}
