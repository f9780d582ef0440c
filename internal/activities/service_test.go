package activities

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

type stubActivityRepo struct {
	byID    map[uuid.UUID]*models.Activity
	created []CreateActivityDTO
	updates map[uuid.UUID]map[string]any
	deleted []uuid.UUID
}

func newStubActivityRepo() *stubActivityRepo {
	return &stubActivityRepo{
		byID:    map[uuid.UUID]*models.Activity{},
		updates: map[uuid.UUID]map[string]any{},
	}
}

func (r *stubActivityRepo) Create(_ context.Context, dto CreateActivityDTO) (*models.Activity, error) {
	r.created = append(r.created, dto)
	row := &models.Activity{
		ID:          uuid.New(),
		CompanyID:   dto.CompanyID,
		GuideID:     dto.GuideID,
		Name:        dto.Name,
		Description: dto.Description,
		StartTime:   dto.StartTime,
		PriceCents:  dto.PriceCents,
		PhotoRef:    dto.PhotoRef,
	}
	r.byID[row.ID] = row
	return row, nil
}

func (r *stubActivityRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Activity, error) {
	row, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func (r *stubActivityRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]models.Activity, error) {
	var out []models.Activity
	for _, row := range r.byID {
		if row.CompanyID == companyID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *stubActivityRepo) ListForGuide(_ context.Context, guideID uuid.UUID) ([]models.Activity, error) {
	var out []models.Activity
	for _, row := range r.byID {
		if row.GuideID != nil && *row.GuideID == guideID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *stubActivityRepo) ListUpcoming(_ context.Context, after time.Time, _ int) ([]models.Activity, error) {
	var out []models.Activity
	for _, row := range r.byID {
		if row.StartTime.After(after) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (r *stubActivityRepo) Update(_ context.Context, id uuid.UUID, updates map[string]any) (*models.Activity, error) {
	r.updates[id] = updates
	row, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if name, ok := updates["name"].(string); ok {
		row.Name = name
	}
	return row, nil
}

func (r *stubActivityRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	delete(r.byID, id)
	return nil
}

type stubUserLookup struct {
	byID map[uuid.UUID]*models.User
}

func (l *stubUserLookup) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	row, ok := l.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return row, nil
}

func newActivitiesService(t *testing.T, repo *stubActivityRepo, users *stubUserLookup) Service {
	t.Helper()
	if users == nil {
		users = &stubUserLookup{byID: map[uuid.UUID]*models.User{}}
	}
	svc, err := NewService(ServiceParams{Repo: repo, Users: users})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreateAssignsGuideFromSameCompany(t *testing.T) {
	companyID := uuid.New()
	guideID := uuid.New()
	repo := newStubActivityRepo()
	users := &stubUserLookup{byID: map[uuid.UUID]*models.User{
		guideID: {ID: guideID, Role: enums.RoleGuide, CompanyID: &companyID},
	}}
	svc := newActivitiesService(t, repo, users)

	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}
	dto, err := svc.Create(context.Background(), owner, companyID, CreateActivityRequest{
		Name:       "  Glacier Hike ",
		StartTime:  time.Now().Add(48 * time.Hour),
		PriceCents: 12_500,
		GuideID:    &guideID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if dto.Name != "Glacier Hike" {
		t.Fatalf("expected trimmed name, got %q", dto.Name)
	}
	if dto.GuideID == nil || *dto.GuideID != guideID {
		t.Fatalf("expected guide %s assigned, got %v", guideID, dto.GuideID)
	}
}

func TestCreateRejectsGuideFromAnotherCompany(t *testing.T) {
	companyID := uuid.New()
	otherCompany := uuid.New()
	guideID := uuid.New()
	repo := newStubActivityRepo()
	users := &stubUserLookup{byID: map[uuid.UUID]*models.User{
		guideID: {ID: guideID, Role: enums.RoleGuide, CompanyID: &otherCompany},
	}}
	svc := newActivitiesService(t, repo, users)

	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}
	_, err := svc.Create(context.Background(), owner, companyID, CreateActivityRequest{
		Name:      "Kayak Tour",
		StartTime: time.Now().Add(time.Hour),
		GuideID:   &guideID,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no row created, got %d", len(repo.created))
	}
}

func TestCreateRejectsCustomerWithNonGuideRole(t *testing.T) {
	companyID := uuid.New()
	customerID := uuid.New()
	repo := newStubActivityRepo()
	users := &stubUserLookup{byID: map[uuid.UUID]*models.User{
		customerID: {ID: customerID, Role: enums.RoleCustomer},
	}}
	svc := newActivitiesService(t, repo, users)

	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}
	_, err := svc.Create(context.Background(), owner, companyID, CreateActivityRequest{
		Name:      "Kayak Tour",
		StartTime: time.Now().Add(time.Hour),
		GuideID:   &customerID,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateByAssignedGuide(t *testing.T) {
	companyID := uuid.New()
	guideID := uuid.New()
	repo := newStubActivityRepo()
	row := &models.Activity{ID: uuid.New(), CompanyID: companyID, GuideID: &guideID, Name: "Old"}
	repo.byID[row.ID] = row
	svc := newActivitiesService(t, repo, nil)

	guide := authz.Actor{UserID: guideID, Role: enums.RoleGuide, CompanyID: &companyID}
	name := "Sunset Ridge"
	dto, err := svc.Update(context.Background(), guide, row.ID, UpdateActivityRequest{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if dto.Name != "Sunset Ridge" {
		t.Fatalf("expected renamed activity, got %q", dto.Name)
	}
}

func TestUpdateByUnassignedGuideForbidden(t *testing.T) {
	companyID := uuid.New()
	assigned := uuid.New()
	repo := newStubActivityRepo()
	row := &models.Activity{ID: uuid.New(), CompanyID: companyID, GuideID: &assigned, Name: "Old"}
	repo.byID[row.ID] = row
	svc := newActivitiesService(t, repo, nil)

	other := authz.Actor{UserID: uuid.New(), Role: enums.RoleGuide, CompanyID: &companyID}
	name := "Hijacked"
	_, err := svc.Update(context.Background(), other, row.ID, UpdateActivityRequest{Name: &name})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWriteOnMissingActivityLooksForbiddenToOwner(t *testing.T) {
	companyID := uuid.New()
	repo := newStubActivityRepo()
	svc := newActivitiesService(t, repo, nil)

	owner := authz.Actor{UserID: uuid.New(), Role: enums.RoleCompanyOwner, CompanyID: &companyID}
	err := svc.Delete(context.Background(), owner, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for unknown id, got %v", err)
	}

	admin := authz.Actor{UserID: uuid.New(), Role: enums.RolePlatformAdmin}
	err = svc.Delete(context.Background(), admin, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for admin, got %v", err)
	}
}

func TestGetIsPubliclyVisible(t *testing.T) {
	repo := newStubActivityRepo()
	row := &models.Activity{ID: uuid.New(), CompanyID: uuid.New(), Name: "Open Tour"}
	repo.byID[row.ID] = row
	svc := newActivitiesService(t, repo, nil)

	dto, err := svc.Get(context.Background(), authz.AnonymousActor(), row.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if dto.Name != "Open Tour" {
		t.Fatalf("unexpected activity %q", dto.Name)
	}

	_, err = svc.Get(context.Background(), authz.AnonymousActor(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListForGuideRequiresGuideRole(t *testing.T) {
	repo := newStubActivityRepo()
	svc := newActivitiesService(t, repo, nil)

	customer := authz.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	_, err := svc.ListForGuide(context.Background(), customer)
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
