package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/entitle/plan"
	"github.com/xraph/entitle/store/backend"
	"github.com/xraph/entitle/store/memory"
	"github.com/xraph/entitle/store/sqlite"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", backend.DriverMemory},
		{"mem", backend.DriverMemory},
		{"PG", backend.DriverPostgres},
		{"postgresql", backend.DriverPostgres},
		{"sqlite3", backend.DriverSQLite},
		{"mongodb", backend.DriverMongo},
		{" mongo ", backend.DriverMongo},
		{"oracle", "oracle"},
	}
	for _, tt := range tests {
		if got := backend.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenMemory(t *testing.T) {
	s, err := backend.Open(context.Background(), "memory", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("got %T, want *memory.Store", s)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := backend.Open(context.Background(), "postgres", ""); err == nil {
		t.Error("expected error for missing dsn")
	}
}

func TestNewUnsupported(t *testing.T) {
	if _, err := backend.New("oracle", nil); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/var/lib/entitle.db", "/var/lib/entitle.db?_pragma=busy_timeout(5000)"},
		{"file:entitle.db?cache=shared", "file:entitle.db?cache=shared&_pragma=busy_timeout(5000)"},
		{"entitle.db?_pragma=busy_timeout(100)", "entitle.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		if got := backend.SQLiteDSN(tt.in); got != tt.want {
			t.Errorf("SQLiteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := backend.Open(ctx, "sqlite3", filepath.Join(t.TempDir(), "entitle.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, ok := s.(*sqlite.Store); !ok {
		t.Fatalf("got %T, want *sqlite.Store", s)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.SyncPlans(ctx, plan.DefaultCatalog()); err != nil {
		t.Fatal(err)
	}
	plans, err := s.ListPlans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != len(plan.DefaultCatalog()) {
		t.Errorf("expected %d plans, got %d", len(plan.DefaultCatalog()), len(plans))
	}
}
