package artifact

import (
	"context"
	"encoding/json"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/datastorage/query"
)

// ListRequest is the list_children operation's input.
type ListRequest struct {
	ParentID   string // "" means top-level of the context workspace
	Keywords   []string
	Filters    map[string]interface{}
	Mode       string
	Offset     int
	Limit      int
	OrderBy    string
	Pagination bool
	Silent     bool
}

// ListResult is list_children's output: the matching sanitized views,
// and, when requested, the unpaginated total. Items holds *models.ArtifactView
// entries, or, when the parent's config.list_fields restricts the
// projection, map[string]interface{} entries carrying only those keys.
type ListResult struct {
	Items []interface{}
	Total int
}

// ListChildren implements §4.5's Query Planner.
func (c *Controller) ListChildren(ctx context.Context, rc RequestContext, req ListRequest) (result *ListResult, err error) {
	sess, err := c.deps.Pool.Begin(ctx, req.Silent)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	var parent *models.Artifact
	if req.ParentID != "" {
		parent, err = c.loadByIdentifier(ctx, sess, req.ParentID, rc.Workspace)
		if err != nil {
			return nil, err
		}
		if err = c.authorize(ctx, rc, parent, "list"); err != nil {
			return nil, err
		}
	}

	var listFields []string
	if parent != nil && parent.Config != nil {
		listFields = parent.Config.ListFields
	}

	planReq := query.Request{
		Keywords:   req.Keywords,
		Filters:    req.Filters,
		Mode:       req.Mode,
		Offset:     req.Offset,
		Limit:      req.Limit,
		OrderBy:    req.OrderBy,
		Pagination: req.Pagination,
		Silent:     req.Silent,
		Workspace:  rc.Workspace,
	}
	if parent != nil {
		parentID := parent.ID
		planReq.ParentID = &parentID
	}

	plan, err := query.Build(planReq, listFields)
	if err != nil {
		return nil, err
	}

	rows, total, err := c.deps.Repo.Query(ctx, sess, plan)
	if err != nil {
		return nil, err
	}

	items := make([]interface{}, 0, len(rows))
	for i := range rows {
		view, verr := c.sanitize(ctx, sess, &rows[i])
		if verr != nil {
			return nil, verr
		}
		if len(listFields) > 0 {
			projected, perr := projectFields(view, listFields)
			if perr != nil {
				return nil, perr
			}
			items = append(items, projected)
			continue
		}
		items = append(items, view)
	}

	if !req.Silent && parent != nil {
		if err = c.deps.Repo.IncrementCounters(ctx, sess, parent.ID, 1, 0); err != nil {
			return nil, err
		}
	}

	return &ListResult{Items: items, Total: total}, nil
}

// projectFields renders view down to a plain map carrying only the keys
// named by fields, per config.list_fields (§4.5). The repository query
// still fetches every column — scanRows assumes a fixed positional
// column set shared with every other caller of ArtifactRepository.Query
// — so the restriction is applied here, at the response boundary, rather
// than as a narrowed SQL SELECT list.
func projectFields(view *models.ArtifactView, fields []string) (map[string]interface{}, error) {
	raw, err := json.Marshal(view)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode artifact view for projection")
	}
	var full map[string]interface{}
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode artifact view for projection")
	}
	projected := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			projected[f] = v
		}
	}
	return projected, nil
}
