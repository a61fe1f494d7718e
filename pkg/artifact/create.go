package artifact

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/alias"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/vector"
)

// CreateRequest is the create operation's input.
type CreateRequest struct {
	ParentID     string // identifier of the parent artifact, or "" for a top-level artifact
	Alias        string // explicit alias; mutually exclusive with AliasPattern
	AliasPattern string
	Overwrite    bool // when Alias collides, adopt the existing row's id instead of failing
	Type         string
	Manifest     map[string]interface{}
	Permissions  map[string]interface{} // caller-supplied config.permissions entries
	Config       *models.Config         // remaining caller-supplied config fields; Permissions is ignored here in favor of the Permissions field above
	Secrets      map[string]interface{}
	Version      string // "stage", "new", or an explicit version label
	Comment      string
}

// Create implements §4.4's create operation.
func (c *Controller) Create(ctx context.Context, rc RequestContext, req CreateRequest) (result *models.ArtifactView, err error) {
	if rc.Workspace == "" {
		return nil, apperrors.NewPreconditionError("create requires a workspace context")
	}

	sess, err := c.deps.Pool.Begin(ctx, false)
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
		if parent.Workspace != rc.Workspace {
			return nil, apperrors.NewValidationError("parent belongs to a different workspace")
		}
		if parent.IsStaged() {
			return nil, apperrors.NewPreconditionError("parent has a pending staged version; commit it before creating children")
		}
		if err = c.authorize(ctx, rc, parent, "create"); err != nil {
			return nil, err
		}
	} else if err = c.deps.Permissions.Check(ctx, rc.User, rc.Workspace, nil, "create"); err != nil {
		return nil, err
	}

	draft := &models.Artifact{
		Workspace: rc.Workspace,
		Type:      req.Type,
		Manifest:  req.Manifest,
		Config:    req.Config,
		Secrets:   req.Secrets,
	}
	if err = validateManifest(draft, parent); err != nil {
		return nil, err
	}

	if err = requirePersistentWorkspace(ctx, c.deps.WorkspacePersistence, rc.Workspace); err != nil {
		return nil, err
	}

	var idParts map[string]interface{}
	if parent != nil && parent.Config != nil {
		idParts = parent.Config.IDParts
	}
	synthetic := alias.SyntheticParts(rc.User.ID, "", "")

	resolvedAlias, err := c.newAllocator(sess).Allocate(ctx, rc.Workspace, req.Alias, req.AliasPattern, idParts, synthetic)
	if err != nil {
		return nil, err
	}

	existing, lookupErr := c.deps.Repo.GetByAlias(ctx, sess, rc.Workspace, resolvedAlias)
	var overwriting bool
	switch {
	case lookupErr == nil:
		if req.Alias == "" || !req.Overwrite {
			return nil, apperrors.NewAlreadyExistsError("artifact " + rc.Workspace + "/" + resolvedAlias)
		}
		overwriting = true
	case goerrors.Is(lookupErr, apperrors.New(apperrors.ErrorTypeNotFound, "")):
		// no collision; proceed with a fresh insert.
	default:
		return nil, lookupErr
	}

	now := time.Now().UTC()
	a := draft
	a.Alias = &resolvedAlias
	if overwriting {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.CreatedBy = existing.CreatedBy
	} else {
		a.ID = uuid.NewString()
		a.CreatedAt = now
		a.CreatedBy = rc.User.ID
	}
	a.LastModified = now
	if parent != nil {
		parentID := parent.ID
		a.ParentID = &parentID
	}

	mergedConfig := cloneConfig(req.Config)
	mergedConfig.Permissions = mergePermissions(rc.User.ID, req.Permissions, parent)
	a.Config = mergedConfig

	switch req.Version {
	case "stage":
		a.Staging = []models.StagingEntry{}
		a.Versions = nil
	default:
		label := req.Version
		if label == "" || label == "new" {
			label = "v0"
		}
		comment := req.Comment
		if comment == "" {
			comment = "Initial version"
		}
		a.Versions = []models.VersionEntry{{Version: label, Comment: comment, CreatedAt: now}}
	}

	if overwriting {
		err = c.deps.Repo.Update(ctx, sess, a)
	} else {
		err = c.deps.Repo.Create(ctx, sess, a)
	}
	if err != nil {
		return nil, err
	}

	if a.Type == "vector-collection" {
		size := models.DefaultVectorSize
		distance := models.DefaultVectorDistance
		if a.Config.VectorsConfig != nil {
			if a.Config.VectorsConfig.Size > 0 {
				size = a.Config.VectorsConfig.Size
			}
			if a.Config.VectorsConfig.Distance != "" {
				distance = a.Config.VectorsConfig.Distance
			}
		}
		if c.deps.VectorDB != nil {
			if err = c.deps.VectorDB.CreateCollection(ctx, vectorCollectionName(a), vector.CollectionConfig{Size: size, Distance: distance}); err != nil {
				c.deps.Metrics.RecordVectorOp("create_collection", err)
				return nil, err
			}
			c.deps.Metrics.RecordVectorOp("create_collection", nil)
		}
	}

	creds := c.resolveCredentials(parent, a)
	label := ""
	if len(a.Versions) > 0 {
		label = a.Versions[len(a.Versions)-1].Version
	}
	snapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label, Comment: req.Comment}
	index := uint(a.StageIndex())
	if err = c.writeSnapshot(ctx, creds, a, index, snapshot); err != nil {
		return nil, err
	}

	return c.sanitize(ctx, sess, a)
}

func cloneConfig(cfg *models.Config) *models.Config {
	if cfg == nil {
		return &models.Config{}
	}
	clone := *cfg
	return &clone
}
