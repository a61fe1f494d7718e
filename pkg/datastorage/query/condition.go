// Package query is the Query Planner: it turns the listing DSL
// (keywords, filters, mode, ordering, pagination) into a small predicate
// AST and then renders that AST to dialect-specific SQL through
// sqldialect.Builder.
package query

// Condition is one node of the predicate AST combined by a Plan's mode.
type Condition interface {
	isCondition()
}

// Eq is an equality comparison against a fixed column (type, alias,
// workspace, parent_id, created_by) or a JSON sub-key
// (config.permissions.<user>).
type Eq struct {
	Column string // the JSON column read (e.g. "config") when Path is set
	Path   string // JSON path under Column, e.g. "permissions.alice"
	Value  interface{}
}

func (Eq) isCondition() {}

// Range is a scalar-or-interval comparison over created_at,
// last_modified, download_count, or view_count. A scalar Lo with Hi nil
// means "Column >= Lo"; both Lo and Hi set means a closed interval with
// nil endpoints treated as unbounded (wildcards).
type Range struct {
	Column string
	Lo     interface{}
	Hi     interface{}
	HasHi  bool
}

func (Range) isCondition() {}

// Fuzzy is a `*`-wildcard manifest sub-key match, translated to a
// case-insensitive LIKE/ILIKE with SQL wildcard substitution.
type Fuzzy struct {
	Path    string // manifest.<key>
	Pattern string // caller's value with * substituted for SQL %
}

func (Fuzzy) isCondition() {}

// JSONPath is an equality comparison against an arbitrary manifest
// sub-key (non-wildcard manifest.<key> filters).
type JSONPath struct {
	Column string // "manifest" or "config"
	Path   string
	Value  interface{}
}

func (JSONPath) isCondition() {}

// Keyword matches a free-text token against the entire manifest JSON
// text, case-insensitively.
type Keyword struct {
	Token string
}

func (Keyword) isCondition() {}

// StageFilter restricts to staged or unstaged rows. It is always
// AND-combined with the rest of a Plan's conditions, never part of the
// keyword/filter OR group.
type StageFilter struct {
	Staged bool
}

func (StageFilter) isCondition() {}
