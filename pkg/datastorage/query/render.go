package query

import (
	"fmt"
	"strings"

	"github.com/vaultspace/artifactd/pkg/datastorage/repository/sqldialect"
)

// Rendered is a Plan compiled to SQL for one dialect: a WHERE clause
// (without the "WHERE" keyword), its positional args, and an ORDER BY
// clause (without the "ORDER BY" keyword, empty if unordered).
type Rendered struct {
	Where   string
	Args    []interface{}
	OrderBy string
}

// Render compiles a Plan against a dialect Builder.
func Render(p *Plan, b sqldialect.Builder) Rendered {
	var args []interface{}
	pos := 0
	next := func() int {
		pos++
		return pos
	}

	clauses := []string{renderCondition(p.Scope, b, &args, next)}

	if p.Stage != nil {
		clauses = append(clauses, renderStage(*p.Stage, b))
	}

	if len(p.Group) > 0 {
		parts := make([]string, len(p.Group))
		for i, c := range p.Group {
			parts[i] = renderCondition(c, b, &args, next)
		}
		sep := " AND "
		if p.Mode == "OR" {
			sep = " OR "
		}
		clauses = append(clauses, "("+strings.Join(parts, sep)+")")
	}

	var order string
	if p.OrderColumn != "" {
		dir := "DESC"
		if p.Ascending {
			dir = "ASC"
		}
		order = fmt.Sprintf("%s %s", p.OrderColumn, dir)
	}

	return Rendered{
		Where:   strings.Join(clauses, " AND "),
		Args:    args,
		OrderBy: order,
	}
}

func renderStage(s StageFilter, b sqldialect.Builder) string {
	if s.Staged {
		return "(staging IS NOT NULL AND staging != 'null' AND staging != '[]')"
	}
	return "(staging IS NULL OR staging = 'null')"
}

func renderCondition(c Condition, b sqldialect.Builder, args *[]interface{}, next func() int) string {
	switch v := c.(type) {
	case Eq:
		if v.Path != "" {
			expr := b.JSONText(v.Column, v.Path)
			*args = append(*args, v.Value)
			return fmt.Sprintf("%s = %s", expr, b.Placeholder(next()))
		}
		*args = append(*args, v.Value)
		return fmt.Sprintf("%s = %s", v.Column, b.Placeholder(next()))

	case JSONPath:
		expr := b.JSONText(v.Column, v.Path)
		*args = append(*args, v.Value)
		return fmt.Sprintf("%s = %s", expr, b.Placeholder(next()))

	case Fuzzy:
		parts := strings.SplitN(v.Path, ".", 2)
		column, path := parts[0], ""
		if len(parts) == 2 {
			path = parts[1]
		}
		expr := b.JSONText(column, path)
		*args = append(*args, v.Pattern)
		return b.ILike(expr, next())

	case Range:
		if v.HasHi {
			var lo, hi string
			if v.Lo != nil {
				*args = append(*args, v.Lo)
				lo = fmt.Sprintf("%s >= %s", v.Column, b.Placeholder(next()))
			}
			if v.Hi != nil {
				*args = append(*args, v.Hi)
				hi = fmt.Sprintf("%s <= %s", v.Column, b.Placeholder(next()))
			}
			switch {
			case lo != "" && hi != "":
				return fmt.Sprintf("(%s AND %s)", lo, hi)
			case lo != "":
				return lo
			case hi != "":
				return hi
			}
			return "1=1"
		}
		*args = append(*args, v.Lo)
		return fmt.Sprintf("%s >= %s", v.Column, b.Placeholder(next()))

	case Keyword:
		expr := "CAST(manifest AS TEXT)"
		*args = append(*args, "%"+v.Token+"%")
		return b.ILike(expr, next())

	default:
		return "1=1"
	}
}
