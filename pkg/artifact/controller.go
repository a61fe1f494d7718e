// Package artifact is the Lifecycle Controller: the public API
// (create, edit, read, commit, delete, put_file, remove_file, get_file,
// list_files, list_children, reset_stats, the vector operations, and
// publish). Every operation opens a fresh metadata-store session,
// resolves the target artifact, asks the Permission Engine, performs
// the work against whichever of the object store / vector database /
// archive adapter it needs, commits or rolls back, and returns a
// sanitized view.
package artifact

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vaultspace/artifactd/internal/database"
	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/internal/validation"
	"github.com/vaultspace/artifactd/pkg/alias"
	"github.com/vaultspace/artifactd/pkg/alias/wordlists"
	"github.com/vaultspace/artifactd/pkg/archive"
	"github.com/vaultspace/artifactd/pkg/artifact/metrics"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/datastorage/repository"
	"github.com/vaultspace/artifactd/pkg/embedding"
	"github.com/vaultspace/artifactd/pkg/objectstore"
	"github.com/vaultspace/artifactd/pkg/objectstore/presignlimiter"
	"github.com/vaultspace/artifactd/pkg/permission"
	"github.com/vaultspace/artifactd/pkg/vector"
	"github.com/vaultspace/artifactd/pkg/version"
)

// ObjectStoreFactory builds an object-store client for a resolved
// credential set. Production wiring is objectstore.NewClient; tests
// substitute a fake.
type ObjectStoreFactory func(ctx context.Context, creds objectstore.Credentials) (*objectstore.Client, error)

// Deps wires every collaborator the controller composes.
type Deps struct {
	Pool          *database.Pool
	Repo          *repository.ArtifactRepository
	Words         *wordlists.Loader // alias word-list pools; nil selects the built-in defaults
	Permissions   *permission.Evaluator
	ObjectStore   ObjectStoreFactory
	ServerDefault objectstore.ServerDefaults
	PresignTTL    time.Duration
	ArtifactsDir  string
	VectorDB      vector.Database
	Embeddings    embedding.Service
	PresignLimit  *presignlimiter.Limiter
	HTTPClient    *http.Client
	Metrics       *metrics.Recorder
	Logger        *zap.Logger
	// WorkspacePersistence checks whether a workspace is marked
	// persistent, per §4.4 create step 3. Nil skips the check (e.g. in
	// single-tenant deployments with no workspace registry).
	WorkspacePersistence WorkspacePersistence
}

// Controller implements every Lifecycle Controller operation.
type Controller struct {
	deps Deps
	log  *zap.Logger
}

// NewController builds a Controller from its wired dependencies.
func NewController(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ObjectStore == nil {
		deps.ObjectStore = objectstore.NewClient
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder()
	}
	return &Controller{deps: deps, log: deps.Logger}
}

// RequestContext is the {user, ws} context every operation takes.
type RequestContext struct {
	User      permission.User
	Workspace string
}

// ParseIdentifier splits an artifact_id argument into its components: a
// canonical UUID is returned as-is with workspace empty; a
// "workspace/alias" pair is split; a bare alias is rewritten against the
// caller's context workspace.
func ParseIdentifier(raw, contextWorkspace string) (workspace, aliasOrID string, isUUID bool) {
	if alias.IsUUIDShaped(raw) {
		return "", raw, true
	}
	if ws, al, found := strings.Cut(raw, "/"); found {
		return ws, al, false
	}
	return contextWorkspace, raw, false
}

// loadByIdentifier resolves an artifact_id argument to its row.
func (c *Controller) loadByIdentifier(ctx context.Context, exec repository.Executor, raw, contextWorkspace string) (*models.Artifact, error) {
	ws, aliasOrID, isUUID := ParseIdentifier(raw, contextWorkspace)
	if isUUID {
		return c.deps.Repo.GetByID(ctx, exec, aliasOrID)
	}
	return c.deps.Repo.GetByAlias(ctx, exec, ws, aliasOrID)
}

// refFor renders an artifact's external "workspace/alias" identifier,
// falling back to its bare UUID when it has no alias.
func refFor(a *models.Artifact) string {
	if a.Alias != nil && *a.Alias != "" {
		return a.Workspace + "/" + *a.Alias
	}
	return a.ID
}

// sanitize builds the client-facing view of a, resolving its parent's
// ref when present.
func (c *Controller) sanitize(ctx context.Context, exec repository.Executor, a *models.Artifact) (*models.ArtifactView, error) {
	var parentRef *string
	if a.ParentID != nil {
		parent, err := c.deps.Repo.GetByID(ctx, exec, *a.ParentID)
		if err == nil {
			ref := refFor(parent)
			parentRef = &ref
		}
	}
	return a.SanitizedView(refFor(a), parentRef), nil
}

// authorize resolves the effective permission map for an artifact
// (falling back to an empty grant set) and checks it against operation.
func (c *Controller) authorize(ctx context.Context, rc RequestContext, a *models.Artifact, operation string) error {
	return c.deps.Permissions.Check(ctx, rc.User, rc.Workspace, a.EffectivePermissions(), operation)
}

// vectorCollectionName renders the backing vector collection's name for
// an artifact, per §6's "<workspace>^<alias>" identifier format.
func vectorCollectionName(a *models.Artifact) string {
	al := ""
	if a.Alias != nil {
		al = *a.Alias
	}
	return a.Workspace + "^" + al
}

// mergedSecrets combines a parent's secrets with an artifact's own,
// the artifact's entries overriding the parent's, per §4.6.
func mergedSecrets(parent, a *models.Artifact) map[string]interface{} {
	merged := map[string]interface{}{}
	if parent != nil {
		for k, v := range parent.Secrets {
			merged[k] = v
		}
	}
	for k, v := range a.Secrets {
		merged[k] = v
	}
	return merged
}

// resolveCredentials applies §4.6's credential resolution rule for
// object-store access to a (parent, artifact) pair.
func (c *Controller) resolveCredentials(parent, a *models.Artifact) objectstore.Credentials {
	return objectstore.ResolveCredentials(parent, a, c.deps.ServerDefault)
}

// snapshotKey/blobKey/versionPrefix/artifactPrefix close over the
// controller's configured artifacts_dir and the resolved credential
// prefix, so call sites don't thread four path segments through every
// call.
func (c *Controller) snapshotKey(creds objectstore.Credentials, a *models.Artifact, index uint) string {
	return version.SnapshotKey(creds.Prefix, a.Workspace, c.deps.ArtifactsDir, a.ID, index)
}

func (c *Controller) blobKey(creds objectstore.Credentials, a *models.Artifact, index uint, relativePath string) (string, error) {
	return version.BlobKey(creds.Prefix, a.Workspace, c.deps.ArtifactsDir, a.ID, index, relativePath)
}

func (c *Controller) versionPrefix(creds objectstore.Credentials, a *models.Artifact, index uint) string {
	return version.VersionPrefix(creds.Prefix, a.Workspace, c.deps.ArtifactsDir, a.ID, index)
}

func (c *Controller) artifactPrefix(creds objectstore.Credentials, a *models.Artifact) string {
	return version.ArtifactPrefix(creds.Prefix, a.Workspace, c.deps.ArtifactsDir, a.ID)
}

// requirePersistentWorkspace enforces §4.4 create step 3. Workspace
// persistence is tracked by the external collaborator out of scope for
// this core (the "workspace persistence flags" non-goal); the
// controller exposes the hook as a caller-supplied predicate so the
// wiring that does track it can plug in without this package knowing
// its storage.
type WorkspacePersistence func(ctx context.Context, workspace string) (bool, error)

func requirePersistentWorkspace(ctx context.Context, check WorkspacePersistence, workspace string) error {
	if check == nil {
		return nil
	}
	ok, err := check(ctx, workspace)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewPreconditionError("workspace is not marked persistent")
	}
	return nil
}

// newAllocator builds a request-scoped Allocator wrapping the active
// session's FindExistingAliases probe.
func (c *Controller) newAllocator(exec repository.Executor) *alias.Allocator {
	return alias.NewAllocator(c.deps.Words, func(ctx context.Context, workspace string, candidates []string) (map[string]bool, error) {
		return c.deps.Repo.FindExistingAliases(ctx, exec, workspace, candidates)
	})
}

// mergePermissions implements §4.4 create/edit's permission merge rule:
// {creator: "*"} union caller-supplied union parent's.
func mergePermissions(creator string, supplied map[string]interface{}, parent *models.Artifact) map[string]interface{} {
	merged := map[string]interface{}{}
	if parent != nil {
		for k, v := range parent.EffectivePermissions() {
			merged[k] = v
		}
	}
	for k, v := range supplied {
		merged[k] = v
	}
	if creator != "" {
		merged[creator] = "*"
	}
	return merged
}

// objectStoreFor builds an object-store client for a resolved
// credential set through the controller's configured factory.
func (c *Controller) objectStoreFor(ctx context.Context, creds objectstore.Credentials) (*objectstore.Client, error) {
	return c.deps.ObjectStore(ctx, creds)
}

// writeSnapshot marshals snapshot and persists it at a version's
// canonical snapshot key.
func (c *Controller) writeSnapshot(ctx context.Context, creds objectstore.Credentials, a *models.Artifact, index uint, snapshot models.Snapshot) error {
	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "encode version snapshot")
	}
	return store.Put(ctx, c.snapshotKey(creds, a, index), body)
}

// readSnapshot loads and decodes a version's metadata snapshot from S3.
func (c *Controller) readSnapshot(ctx context.Context, creds objectstore.Credentials, a *models.Artifact, index uint) (*models.Snapshot, error) {
	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}
	body, err := store.Get(ctx, c.snapshotKey(creds, a, index))
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "decode version snapshot")
	}
	return &snap, nil
}

// validateManifest validates a.Manifest against its declared type's
// schema, and, when parent carries a collection_schema, against that
// too (used at create and at commit).
func validateManifest(a *models.Artifact, parent *models.Artifact) error {
	if err := validation.ValidateManifest(a.Type, a.Manifest); err != nil {
		return err
	}
	if parent != nil && parent.Config != nil && len(parent.Config.CollectionSchema) > 0 {
		return validation.ValidateCollectionSchema(parent.Config.CollectionSchema, a.Manifest)
	}
	return nil
}
