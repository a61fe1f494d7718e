// Package sqldialect abstracts the two SQL dialects the metadata store
// speaks (Postgres jsonb operators and SQLite json_extract) behind a
// single predicate-rendering interface, so the query planner and the
// repository never branch on dialect themselves.
package sqldialect

import (
	"fmt"
	"strings"

	"github.com/vaultspace/artifactd/internal/database"
)

// Builder renders dialect-specific SQL fragments for JSON-field access
// and case-insensitive matching. Placeholders are rendered in the
// dialect's native form ("$1" for Postgres, "?" for SQLite); callers
// track arg position themselves and pass it to Placeholder.
type Builder interface {
	// Placeholder renders the nth (1-based) bind placeholder.
	Placeholder(n int) string

	// JSONText renders an expression extracting column->path as text,
	// e.g. manifest->>'name' (Postgres) or json_extract(manifest,
	// '$.name') (SQLite). path may contain further dots for nesting.
	JSONText(column, path string) string

	// ILike renders a case-insensitive LIKE comparison of expr against
	// the nth placeholder.
	ILike(expr string, argPos int) string

	// Name is the dialect's identifying string, for logging/tests.
	Name() string
}

// For builds the Builder for a pool's dialect.
func For(dialect database.Dialect) Builder {
	switch dialect {
	case database.DialectSQLite:
		return sqliteBuilder{}
	default:
		return postgresBuilder{}
	}
}

type postgresBuilder struct{}

func (postgresBuilder) Name() string { return "postgres" }

func (postgresBuilder) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresBuilder) JSONText(column, path string) string {
	parts := strings.Split(path, ".")
	expr := column
	for i, p := range parts {
		if i == len(parts)-1 {
			expr = fmt.Sprintf("%s->>'%s'", expr, p)
		} else {
			expr = fmt.Sprintf("%s->'%s'", expr, p)
		}
	}
	return expr
}

func (b postgresBuilder) ILike(expr string, argPos int) string {
	return fmt.Sprintf("%s ILIKE %s", expr, b.Placeholder(argPos))
}

type sqliteBuilder struct{}

func (sqliteBuilder) Name() string { return "sqlite" }

func (sqliteBuilder) Placeholder(int) string {
	return "?"
}

func (sqliteBuilder) JSONText(column, path string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, path)
}

func (b sqliteBuilder) ILike(expr string, argPos int) string {
	return fmt.Sprintf("lower(%s) LIKE lower(%s)", expr, b.Placeholder(argPos))
}
