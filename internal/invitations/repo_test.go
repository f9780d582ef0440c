package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/enums"
	pkgerrors "github.com/guidely/guidely-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:invitations_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	stmts := []string{
		`CREATE TABLE user_invitations (
			id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			email text NOT NULL,
			token text NOT NULL,
			company_id text NOT NULL,
			role text NOT NULL,
			consumed_at datetime,
			consumed_by text,
			created_at datetime
		)`,
		`CREATE UNIQUE INDEX ux_user_invitations_token ON user_invitations (token)`,
		`CREATE UNIQUE INDEX ux_user_invitations_pending_email
			ON user_invitations (email)
			WHERE consumed_at IS NULL`,
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

func TestRepositoryPendingUniqueness(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	companyID := uuid.New()

	first, err := repo.Create(ctx, CreateInvitationDTO{
		Email:     "guide@example.com",
		Token:     "tok-1",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	})
	if err != nil {
		t.Fatalf("create first invitation: %v", err)
	}

	_, err = repo.Create(ctx, CreateInvitationDTO{
		Email:     "guide@example.com",
		Token:     "tok-2",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	})
	if err == nil {
		t.Fatal("expected second pending invitation to fail")
	}
	if !db.IsUniqueViolation(err, "ux_user_invitations_pending_email") {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// consuming the first frees the address for a new invitation
	affected, err := repo.Consume(ctx, first.Token, uuid.New(), time.Now().UTC())
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one row consumed, got %d", affected)
	}

	if _, err := repo.Create(ctx, CreateInvitationDTO{
		Email:     "guide@example.com",
		Token:     "tok-3",
		CompanyID: companyID,
		Role:      enums.RoleGuide,
	}); err != nil {
		t.Fatalf("re-invite after consume: %v", err)
	}
}

func TestConsumeRoundTripAndDoubleConsume(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	companyID := uuid.New()
	userID := uuid.New()

	created, err := repo.Create(ctx, CreateInvitationDTO{
		Email:     "owner@example.com",
		Token:     "round-trip",
		CompanyID: companyID,
		Role:      enums.RoleCompanyOwner,
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if !created.Pending() {
		t.Fatal("fresh invitation should be pending")
	}

	consumed, err := Consume(ctx, conn, "round-trip", userID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.Pending() {
		t.Fatal("consumed invitation still pending")
	}
	if consumed.ConsumedBy == nil || *consumed.ConsumedBy != userID {
		t.Fatalf("consumed_by not recorded: %+v", consumed)
	}
	if consumed.Role != enums.RoleCompanyOwner || consumed.CompanyID != companyID {
		t.Fatalf("role/company not preserved: %+v", consumed)
	}

	_, err = Consume(ctx, conn, "round-trip", uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double consume, got %v", err)
	}

	_, err = Consume(ctx, conn, "no-such-token", userID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown token, got %v", err)
	}
}

func TestListByCompanyNewestFirst(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	companyID := uuid.New()

	for i, email := range []string{"a@example.com", "b@example.com"} {
		if _, err := repo.Create(ctx, CreateInvitationDTO{
			Email:     email,
			Token:     uuid.NewString(),
			CompanyID: companyID,
			Role:      enums.RoleGuide,
		}); err != nil {
			t.Fatalf("create invitation %d: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rows, err := repo.ListByCompany(ctx, companyID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].CreatedAt.After(rows[1].CreatedAt) && !rows[0].CreatedAt.Equal(rows[1].CreatedAt) {
		t.Fatalf("expected newest first ordering: %v vs %v", rows[0].CreatedAt, rows[1].CreatedAt)
	}
}
