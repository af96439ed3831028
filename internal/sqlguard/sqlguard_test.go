package sqlguard

import (
	"errors"
	"testing"
)

func TestValidateAcceptsReadOnlyStatements(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"SELECT * FROM Orders", "SELECT * FROM Orders"},
		{"  select count(*) from Orders  ", "select count(*) from Orders"},
		{"SELECT 1;", "SELECT 1"},
		{"SELECT 1;;  ; ", "SELECT 1"},
		{"WITH t AS (SELECT 1 AS n) SELECT n FROM t", "WITH t AS (SELECT 1 AS n) SELECT n FROM t"},
	}
	for _, tc := range cases {
		stmt, err := Validate(tc.input, ModeReadOnly)
		if err != nil {
			t.Fatalf("Validate(%q) error = %v", tc.input, err)
		}
		if stmt.Text != tc.want {
			t.Fatalf("Validate(%q).Text = %q, want %q", tc.input, stmt.Text, tc.want)
		}
	}
}

func TestValidateRejectsMultipleStatements(t *testing.T) {
	_, err := Validate("SELECT 1; DROP TABLE x;", ModeReadOnly)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateRejectsDisallowedKeyword(t *testing.T) {
	cases := []string{
		"DROP TABLE Orders",
		"DELETE FROM Orders",
		"TRUNCATE TABLE Orders",
		"EXEC sp_help",
	}
	for _, input := range cases {
		if _, err := Validate(input, ModeReadOnly); err == nil {
			t.Fatalf("Validate(%q) should fail in read-only mode", input)
		}
	}
}

func TestValidateReadWriteWidensAllowlist(t *testing.T) {
	if _, err := Validate("DELETE FROM Orders WHERE id = 1", ModeReadWrite); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	// DDL stays out even in read-write mode.
	if _, err := Validate("DROP TABLE Orders", ModeReadWrite); err == nil {
		t.Fatal("DROP should stay rejected")
	}
}

func TestValidateRejectsNonSQL(t *testing.T) {
	cases := []string{"", "   ", ";;;", "42 is the answer", "```sql"}
	for _, input := range cases {
		if _, err := Validate(input, ModeReadOnly); err == nil {
			t.Fatalf("Validate(%q) should fail", input)
		}
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	inputs := []string{"SELECT 1;", "SELECT * FROM Orders ; ", "WITH t AS (SELECT 1) SELECT * FROM t"}
	for _, input := range inputs {
		first, err := Validate(input, ModeReadOnly)
		if err != nil {
			t.Fatalf("Validate(%q) error = %v", input, err)
		}
		second, err := Validate(first.Text, ModeReadOnly)
		if err != nil {
			t.Fatalf("re-Validate(%q) error = %v", first.Text, err)
		}
		if second.Text != first.Text {
			t.Fatalf("revalidation changed text: %q -> %q", first.Text, second.Text)
		}
	}
}

func TestModeFor(t *testing.T) {
	if ModeFor(false) != ModeReadOnly {
		t.Fatal("ModeFor(false) should be read-only")
	}
	if ModeFor(true) != ModeReadWrite {
		t.Fatal("ModeFor(true) should be read-write")
	}
}
