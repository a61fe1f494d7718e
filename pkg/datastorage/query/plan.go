package query

import (
	"strings"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

var fixedFilterColumns = map[string]bool{
	"type": true, "alias": true, "workspace": true, "parent_id": true, "created_by": true,
}

var rangeFilterColumns = map[string]bool{
	"created_at": true, "last_modified": true, "download_count": true, "view_count": true,
}

var orderableColumns = map[string]bool{
	"id": true, "view_count": true, "download_count": true, "last_modified": true, "created_at": true,
}

// Request is the listing DSL input to list_children.
type Request struct {
	ParentID   *string
	Workspace  string
	Keywords   []string
	Filters    map[string]interface{}
	Mode       string // "AND" or "OR", default "AND"
	Offset     int
	Limit      int
	OrderBy    string // column, optionally suffixed with "<" for ascending
	Pagination bool
	Silent     bool
}

// Plan is the parsed, dialect-independent predicate tree ready to be
// rendered to SQL.
type Plan struct {
	Scope         Condition // parent/workspace scope condition, always AND-combined
	Stage         *StageFilter
	Group         []Condition // keywords + filters, combined by Mode
	Mode          string
	OrderColumn   string
	Ascending     bool
	Offset        int
	Limit         int
	Pagination    bool
	ProjectFields []string // validated list_fields value; applied by the artifact package at response time, not by Render
}

// Build parses a Request into a Plan, enforcing §4.5's filter-key
// whitelist, the list_fields-excludes-secrets projection rule, and the
// stage-flag semantics.
func Build(req Request, listFields []string) (*Plan, error) {
	if len(listFields) > 0 {
		for _, f := range listFields {
			if f == "secrets" {
				return nil, apperrors.NewValidationError("list_fields must not include secrets")
			}
		}
	}

	mode := strings.ToUpper(req.Mode)
	if mode != "OR" {
		mode = "AND"
	}

	plan := &Plan{
		Mode:          mode,
		Offset:        req.Offset,
		Limit:         req.Limit,
		Pagination:    req.Pagination,
		ProjectFields: listFields,
	}

	if req.ParentID != nil {
		plan.Scope = Eq{Column: "parent_id", Value: *req.ParentID}
	} else {
		plan.Scope = Eq{Column: "workspace", Value: req.Workspace}
	}

	staged, hasStageFilter, err := extractStageFlag(req.Filters)
	if err != nil {
		return nil, err
	}
	if hasStageFilter {
		plan.Stage = &StageFilter{Staged: staged}
	} else if req.ParentID != nil || req.Workspace != "" {
		plan.Stage = &StageFilter{Staged: false}
	}

	for _, kw := range req.Keywords {
		if kw == "" {
			continue
		}
		plan.Group = append(plan.Group, Keyword{Token: kw})
	}

	for key, val := range req.Filters {
		if key == "stage" {
			continue
		}
		cond, err := conditionForFilter(key, val)
		if err != nil {
			return nil, err
		}
		plan.Group = append(plan.Group, cond)
	}

	orderCol, ascending := parseOrderBy(req.OrderBy)
	if orderCol != "" && !orderableColumns[orderCol] {
		return nil, apperrors.NewValidationErrorf("unknown order_by column %q", orderCol)
	}
	plan.OrderColumn = orderCol
	plan.Ascending = ascending

	return plan, nil
}

func extractStageFlag(filters map[string]interface{}) (staged bool, has bool, err error) {
	v, ok := filters["stage"]
	if !ok {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, apperrors.NewValidationError("filters.stage must be a boolean")
	}
	return b, true, nil
}

func conditionForFilter(key string, val interface{}) (Condition, error) {
	switch {
	case fixedFilterColumns[key]:
		return Eq{Column: key, Value: val}, nil
	case rangeFilterColumns[key]:
		return rangeCondition(key, val)
	case strings.HasPrefix(key, "manifest."):
		return manifestCondition(strings.TrimPrefix(key, "manifest."), val)
	case strings.HasPrefix(key, "config.permissions."):
		return Eq{Column: "config", Path: "permissions." + strings.TrimPrefix(key, "config.permissions."), Value: val}, nil
	default:
		return nil, apperrors.NewValidationErrorf("unknown filter key %q", key)
	}
}

func rangeCondition(column string, val interface{}) (Condition, error) {
	if pair, ok := val.([]interface{}); ok {
		if len(pair) != 2 {
			return nil, apperrors.NewValidationErrorf("range filter %q must have exactly 2 elements", column)
		}
		return Range{Column: column, Lo: pair[0], Hi: pair[1], HasHi: true}, nil
	}
	return Range{Column: column, Lo: val}, nil
}

func manifestCondition(key string, val interface{}) (Condition, error) {
	s, isString := val.(string)
	if isString && strings.Contains(s, "*") {
		return Fuzzy{Path: "manifest." + key, Pattern: strings.ReplaceAll(s, "*", "%")}, nil
	}
	return JSONPath{Column: "manifest", Path: key, Value: val}, nil
}

func parseOrderBy(orderBy string) (column string, ascending bool) {
	if orderBy == "" {
		return "", false
	}
	if strings.HasSuffix(orderBy, "<") {
		return strings.TrimSuffix(orderBy, "<"), true
	}
	return orderBy, false
}
