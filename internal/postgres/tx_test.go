package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert payment: %w", &pq.Error{Code: "23505"})
	if !IsUniqueViolation(unique) {
		t.Error("expected wrapped 23505 to be a unique violation")
	}
	if IsCheckViolation(unique) || IsForeignKeyViolation(unique) {
		t.Error("unique violation misclassified")
	}
	if !IsCheckViolation(&pq.Error{Code: "23514"}) {
		t.Error("expected 23514 to be a check violation")
	}
	if !IsForeignKeyViolation(&pq.Error{Code: "23503"}) {
		t.Error("expected 23503 to be a foreign key violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Error("plain errors carry no code")
	}
}

func TestNullString(t *testing.T) {
	if NullString("").Valid {
		t.Error("empty string should be NULL")
	}
	if ns := NullString("abc"); !ns.Valid || ns.String != "abc" {
		t.Errorf("unexpected %+v", ns)
	}
}
