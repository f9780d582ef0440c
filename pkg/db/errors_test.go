package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolationPgx(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "ux_users_email"}

	if !IsUniqueViolation(err, "") {
		t.Fatal("expected generic unique violation match")
	}
	if !IsUniqueViolation(err, "ux_users_email") {
		t.Fatal("expected constraint-specific match")
	}
	if IsUniqueViolation(err, "ux_other") {
		t.Fatal("unexpected match for different constraint")
	}
}

func TestIsUniqueViolationPq(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "ux_registrations_user_activity"}

	if !IsUniqueViolation(err, "ux_registrations_user_activity") {
		t.Fatal("expected pq constraint match")
	}
}

func TestIsUniqueViolationIgnoresOtherCodes(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", ConstraintName: "fk_whatever"}
	if IsUniqueViolation(err, "") {
		t.Fatal("foreign key violation must not match")
	}
}

func TestIsUniqueViolationSQLiteText(t *testing.T) {
	err := fmt.Errorf("insert: %w", errors.New("UNIQUE constraint failed: activity_registrations.user_id"))
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected sqlite text match")
	}
}

func TestIsUniqueViolationNil(t *testing.T) {
	if IsUniqueViolation(nil, "anything") {
		t.Fatal("nil error must not match")
	}
}
