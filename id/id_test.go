package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/entitle/id"
)

func TestConstructorsAndParsers(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"HistoryID", id.NewHistoryID, id.ParseHistoryID, "hist_"},
		{"EventID", id.NewEventID, id.ParseEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	if _, err := id.ParseHistoryID(id.NewEventID().String()); err == nil {
		t.Error("ParseHistoryID accepted an evt_ id")
	}
	if _, err := id.ParseEventID(id.NewHistoryID().String()); err == nil {
		t.Error("ParseEventID accepted a hist_ id")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("nil ID should render empty, got %q/%q", i.String(), i.Prefix())
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewHistoryID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var empty id.ID
	if err := empty.Scan(""); err != nil {
		t.Fatalf("Scan(\"\") failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after scanning empty string")
	}
}

func TestSortable(t *testing.T) {
	a := id.NewHistoryID()
	b := id.NewHistoryID()
	if a.String() == b.String() {
		t.Fatalf("two consecutive ids are equal: %q", a.String())
	}
	if a.String() > b.String() {
		t.Errorf("ids should sort by creation: %q > %q", a.String(), b.String())
	}
}
