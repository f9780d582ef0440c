package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guidely/guidely-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestInvitationMigrationEnforcesPendingUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_user_invitations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS user_invitations",
		"ux_user_invitations_pending_email",
		"WHERE consumed_at IS NULL",
		"ux_user_invitations_token",
		"CHECK (role IN ('company_owner', 'guide'))",
		"DROP TABLE IF EXISTS user_invitations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRegistrationMigrationEnforcesSingleEnrollment(t *testing.T) {
	content := readMigration(t, "*_create_activity_registrations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS activity_registrations",
		"ux_registrations_user_activity",
		"(user_id, activity_id)",
		"REFERENCES activities(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS activity_registrations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestUserMigrationConstraints(t *testing.T) {
	content := readMigration(t, "*_create_users.sql")

	checks := []string{
		"CREATE UNIQUE INDEX ux_users_email ON users (lower(email))",
		"role user_role NOT NULL DEFAULT 'customer'",
		"chk_users_role_company",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
