package toolproto

import (
	"errors"
	"fmt"
	"testing"
)

func TestResponseRoundTrip(t *testing.T) {
	result := ResultSet{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{float64(1), "widget"}, {float64(2), "gadget"}},
	}
	payload, err := EncodeResult(result)
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}

	resp, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Result == nil || resp.Schema != nil || resp.Err != nil {
		t.Fatalf("resp = %+v, want only result populated", resp)
	}
	if resp.Result.Columns[1] != "name" {
		t.Fatalf("Columns = %v", resp.Result.Columns)
	}
	if resp.Result.Rows[1][1] != "gadget" {
		t.Fatalf("Rows = %v", resp.Result.Rows)
	}
}

func TestErrorEnvelope(t *testing.T) {
	payload, err := EncodeError(Errf(KindPermission, "denied"))
	if err != nil {
		t.Fatalf("EncodeError() error = %v", err)
	}
	resp, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if resp.Err == nil || resp.Err.Kind != KindPermission {
		t.Fatalf("Err = %+v", resp.Err)
	}
}

func TestRowMapsColumnsInOrder(t *testing.T) {
	result := ResultSet{
		Columns: []string{"a", "b"},
		Rows:    [][]any{{1, 2}},
	}
	row := result.Row(0)
	if row["a"] != 1 || row["b"] != 2 {
		t.Fatalf("Row(0) = %v", row)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Errf(KindTimeout, "slow")); got != KindTimeout {
		t.Fatalf("KindOf = %q", got)
	}
	wrapped := fmt.Errorf("outer: %w", Errf(KindSyntax, "bad"))
	if got := KindOf(wrapped); got != KindSyntax {
		t.Fatalf("KindOf wrapped = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf plain = %q", got)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode("{not json"); err == nil {
		t.Fatal("expected error")
	}
}
