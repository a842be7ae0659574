package storage

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflictMatchesWrappedExclusionViolation(t *testing.T) {
	err := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23P01"})
	if !IsConflict(err) {
		t.Fatalf("expected wrapped 23P01 to classify as conflict")
	}
	if IsConflict(fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("unique violation must not classify as conflict")
	}
}

func TestIsUniqueViolationMatchesWrappedError(t *testing.T) {
	err := fmt.Errorf("record event: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected wrapped 23505 to classify as unique violation")
	}
	if IsUniqueViolation(fmt.Errorf("boom")) {
		t.Fatalf("plain error must not classify as unique violation")
	}
}

func TestIsNotFoundMatchesWrappedNoRows(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load closure: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to classify as not found")
	}
}
