// Package permission is the Permission Engine: it expands permission
// codes into operation sets, resolves the required tier per operation,
// and evaluates artifact-local, workspace-wildcard, and workspace-tier
// grants in the fixed order §4.1 defines.
package permission

import (
	"context"
	_ "embed"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

//go:embed policy/tier.rego
var tierPolicy string

// Tier is a workspace-level permission tier.
type Tier string

const (
	TierRead      Tier = "read"
	TierReadWrite Tier = "read_write"
	TierAdmin     Tier = "admin"
)

// operationTiers is the closed operation→required-tier table from §4.1.
var operationTiers = map[string]Tier{
	"read": TierRead, "get_file": TierRead, "list_files": TierRead, "list_vectors": TierRead,
	"list": TierRead, "get_vector": TierRead, "search_by_vector": TierRead, "search_by_text": TierRead,

	"create": TierReadWrite, "edit": TierReadWrite, "commit": TierReadWrite, "put_file": TierReadWrite,
	"remove_file": TierReadWrite, "add_vectors": TierReadWrite, "add_documents": TierReadWrite,
	"remove_vectors": TierReadWrite,

	"delete": TierAdmin, "reset_stats": TierAdmin, "publish": TierAdmin,
}

// RequiredTier returns the workspace tier an operation requires, or an
// error if the operation name is unrecognized.
func RequiredTier(operation string) (Tier, error) {
	t, ok := operationTiers[operation]
	if !ok {
		return "", apperrors.NewValidationErrorf("unsupported operation %q", operation)
	}
	return t, nil
}

// codeExpansions is the closed permission-code expansion table from
// §4.1, built from smaller named sets so the `rw+`/`*` composition rules
// stay legible instead of being flattened by hand.
var codeExpansions = buildCodeExpansions()

func buildCodeExpansions() map[string][]string {
	l := []string{"list"}
	lPlus := append(append([]string{}, l...), "create", "commit")
	lv := []string{"list", "list_vectors"}
	lvPlus := append(append([]string{}, lv...), "create", "commit", "add_vectors", "add_documents")
	lf := []string{"list", "list_files"}
	lfPlus := append(append([]string{}, lf...), "create", "commit", "put_file")
	r := []string{"read", "get_file", "list_files", "list", "search_by_vector", "search_by_text", "get_vector"}
	rPlus := append(append([]string{}, r...), "put_file", "create", "commit", "add_vectors", "add_documents")
	rw := []string{
		"read", "get_file", "get_vector", "search_by_vector", "search_by_text", "list_files",
		"list_vectors", "list", "edit", "commit", "put_file", "add_vectors", "add_documents",
		"remove_file", "remove_vectors",
	}
	rwPlus := append(append([]string{}, rw...), "create")
	star := append(append([]string{}, rwPlus...), "reset_stats", "publish")

	return map[string][]string{
		"n": {}, "l": l, "l+": lPlus, "lv": lv, "lv+": lvPlus, "lf": lf, "lf+": lfPlus,
		"r": r, "r+": rPlus, "rw": rw, "rw+": rwPlus, "*": star,
	}
}

// Expand returns the set of operations a permission code grants. Codes
// not in the closed table are treated as granting nothing.
func Expand(code string) map[string]bool {
	ops := codeExpansions[code]
	set := make(map[string]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// grants reports whether a config.permissions value (a code string or a
// caller-supplied literal operation list) grants operation.
func grants(value interface{}, operation string) bool {
	switch v := value.(type) {
	case string:
		return Expand(v)[operation]
	case []string:
		for _, op := range v {
			if op == operation {
				return true
			}
		}
	case []interface{}:
		for _, raw := range v {
			if s, ok := raw.(string); ok && s == operation {
				return true
			}
		}
	}
	return false
}

// User is the authorization subject: identity, anonymity, and the
// caller's workspace-role-derived tier.
type User struct {
	ID          string
	Anonymous   bool
	WorkspaceTiers map[string]Tier
}

// EffectiveTier returns the user's tier on a workspace, or "" if none.
func (u User) EffectiveTier(workspace string) Tier {
	if u.WorkspaceTiers == nil {
		return ""
	}
	return u.WorkspaceTiers[workspace]
}

// Evaluator performs the 4-step permission check, delegating the
// workspace-tier comparison (step 4) to an embedded Rego policy so the
// tier ranking lives in one declarative place.
type Evaluator struct {
	mu     sync.Mutex
	query  rego.PreparedEvalQuery
	ready  bool
}

// NewEvaluator returns an Evaluator without preparing the embedded
// tier-comparison policy. Preparation happens lazily, the first time a
// Check reaches step 4 for a user with a non-empty workspace tier, since
// steps 1–3 never need it.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) prepare(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		return nil
	}
	q, err := rego.New(
		rego.Query("data.artifactd.permission.allow"),
		rego.Module("tier.rego", tierPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "prepare permission policy")
	}
	e.query = q
	e.ready = true
	return nil
}

// Check evaluates the four-step authorization order for operation on an
// artifact whose effective config.permissions map is perms, for user
// in workspace ws. Returns nil on grant, a permission-denied AppError
// otherwise.
func (e *Evaluator) Check(ctx context.Context, user User, ws string, perms map[string]interface{}, operation string) error {
	required, err := RequiredTier(operation)
	if err != nil {
		return err
	}

	// Step 1: artifact-local grant.
	if v, ok := perms[user.ID]; ok && user.ID != "" && grants(v, operation) {
		return nil
	}

	// Step 2: authenticated wildcard.
	if !user.Anonymous {
		if v, ok := perms["@"]; ok && grants(v, operation) {
			return nil
		}
	}

	// Step 3: public wildcard.
	if v, ok := perms["*"]; ok && grants(v, operation) {
		return nil
	}

	// Step 4: workspace tier, via the embedded Rego policy.
	granted, err := e.checkWorkspaceTier(ctx, user.EffectiveTier(ws), required)
	if err != nil {
		return err
	}
	if granted {
		return nil
	}

	return apperrors.NewPermissionDeniedError(operation)
}

func (e *Evaluator) checkWorkspaceTier(ctx context.Context, userTier, required Tier) (bool, error) {
	if userTier == "" {
		return false, nil
	}
	if err := e.prepare(ctx); err != nil {
		return false, err
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"user_tier":     string(userTier),
		"required_tier": string(required),
	}))
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "evaluate permission policy")
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := results[0].Expressions[0].Value.(bool)
	return allowed, nil
}
