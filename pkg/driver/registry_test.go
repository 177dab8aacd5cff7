package driver

import (
	"errors"
	"testing"
)

func stubFactory(cfg Config) (Driver, error) {
	return nil, nil
}

func TestRegistry_ResolveCanonical(t *testing.T) {
	reg := NewRegistry()
	reg.Register("postgresql", stubFactory, "postgres", "pg")

	canonical, factory, err := reg.Resolve("postgresql")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if canonical != "postgresql" {
		t.Errorf("canonical = %q, want %q", canonical, "postgresql")
	}
	if factory == nil {
		t.Error("Resolve() returned nil factory")
	}
}

func TestRegistry_ResolveAliases(t *testing.T) {
	reg := NewRegistry()
	reg.Register("postgresql", stubFactory, "postgres", "pg")
	reg.Register("dynamodb", stubFactory, "dynamo")

	tests := []struct {
		alias string
		want  string
	}{
		{"postgres", "postgresql"},
		{"pg", "postgresql"},
		{"PG", "postgresql"},
		{"PostgreSQL", "postgresql"},
		{"  pg  ", "postgresql"},
		{"dynamo", "dynamodb"},
		{"DYNAMODB", "dynamodb"},
	}
	for _, tt := range tests {
		canonical, _, err := reg.Resolve(tt.alias)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tt.alias, err)
			continue
		}
		if canonical != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.alias, canonical, tt.want)
		}
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Register("postgresql", stubFactory, "postgres", "pg")

	for _, typ := range []string{"sqlite", "postgresq", "mongodb", ""} {
		_, _, err := reg.Resolve(typ)
		if err == nil {
			t.Errorf("Resolve(%q) expected error", typ)
			continue
		}
		var notSupported *NotSupportedError
		if !errors.As(err, &notSupported) {
			t.Errorf("Resolve(%q) error type = %T, want *NotSupportedError", typ, err)
			continue
		}
		if len(notSupported.Known) == 0 {
			t.Errorf("Resolve(%q) error should list known identifiers", typ)
		}
	}
}

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()
	reg.Register("redis", stubFactory)
	reg.Register("mysql", stubFactory, "mysql2")

	types := reg.Types()
	want := []string{"mysql", "mysql2", "redis"}
	if len(types) != len(want) {
		t.Fatalf("Types() = %v, want %v", types, want)
	}
	for i, typ := range want {
		if types[i] != typ {
			t.Errorf("Types()[%d] = %q, want %q", i, types[i], typ)
		}
	}
}
