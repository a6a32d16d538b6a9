package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected, please retry", retryable: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "loading counter")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: loading counter: boom" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestIsCodeFollowsChain(t *testing.T) {
	err := fmt.Errorf("booking: %w", New(CodeValidation, "fee must be positive"))
	if !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation code in chain")
	}
	if IsCode(err, CodeConflict) {
		t.Fatalf("unexpected conflict code")
	}
	if IsCode(nil, CodeValidation) {
		t.Fatalf("nil must not match")
	}
}

func TestWithDetails(t *testing.T) {
	base := Newf(CodeValidation, "missing %s", "start_date")
	if base.Message() != "missing start_date" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	detailed := base.WithDetails(map[string]string{"start_date": "required"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if base.Details() != nil {
		t.Fatalf("WithDetails must not mutate the receiver")
	}
	if detailed.Code() != CodeValidation || detailed.Message() != base.Message() {
		t.Fatalf("clone lost code or message")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load payer: %w", New(CodeNotFound, "payer not found"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("expected not-found match")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatal("conflict must not match")
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "payments_invoice_unique", TableName: "payments", Message: "duplicate"}
	err := Wrap(CodeConflict, pgErr, "insert payment")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.PG == nil || d.PG.SQLState != "23505" || d.PG.Constraint != "payments_invoice_unique" || d.PG.Table != "payments" {
		t.Fatalf("unexpected pg fields %+v", d.PG)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(d.Chain))
	}

	fields := d.Fields()
	if fields["pg_code"] != "23505" || fields["error_code"] != string(CodeConflict) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatal("empty pg_column should be omitted")
	}
}

func TestDumpFromPQError(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Table: "subscriptions"})
	d := Dump(err)
	if d.PG == nil || d.PG.SQLState != "23503" || d.PG.Table != "subscriptions" {
		t.Fatalf("unexpected pg fields %+v", d.PG)
	}
	if d.Code != "" {
		t.Fatalf("untyped error should have no code, got %s", d.Code)
	}
	if _, ok := d.Fields()["error_code"]; ok {
		t.Fatal("error_code should be omitted for untyped errors")
	}
}

func TestDumpPlainError(t *testing.T) {
	d := Dump(fmt.Errorf("plain"))
	if d.PG != nil || len(d.Fields()) != 1 {
		t.Fatalf("unexpected dump %+v", d)
	}
}
