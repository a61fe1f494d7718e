package sqldialect

import (
	"testing"

	"github.com/vaultspace/artifactd/internal/database"
)

func TestFor_Postgres(t *testing.T) {
	b := For(database.DialectPostgres)
	if b.Name() != "postgres" {
		t.Fatalf("Name() = %q, want postgres", b.Name())
	}
	if got := b.Placeholder(3); got != "$3" {
		t.Errorf("Placeholder(3) = %q, want $3", got)
	}
	if got := b.JSONText("manifest", "tag"); got != "manifest->>'tag'" {
		t.Errorf("JSONText = %q", got)
	}
	if got := b.JSONText("config", "permissions.alice"); got != "config->'permissions'->>'alice'" {
		t.Errorf("nested JSONText = %q", got)
	}
	if got := b.ILike("manifest->>'tag'", 1); got != "manifest->>'tag' ILIKE $1" {
		t.Errorf("ILike = %q", got)
	}
}

func TestFor_SQLite(t *testing.T) {
	b := For(database.DialectSQLite)
	if b.Name() != "sqlite" {
		t.Fatalf("Name() = %q, want sqlite", b.Name())
	}
	if got := b.Placeholder(3); got != "?" {
		t.Errorf("Placeholder(3) = %q, want ?", got)
	}
	if got := b.JSONText("manifest", "tag"); got != "json_extract(manifest, '$.tag')" {
		t.Errorf("JSONText = %q", got)
	}
	if got := b.ILike("manifest", 1); got != "lower(manifest) LIKE lower(?)" {
		t.Errorf("ILike = %q", got)
	}
}
