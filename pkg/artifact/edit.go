package artifact

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
)

// EditRequest is the edit operation's input. A nil/empty field leaves
// the corresponding column unchanged; Manifest, Type, Config, Secrets,
// and Permissions are independently optional.
type EditRequest struct {
	ArtifactID  string
	Manifest    map[string]interface{}
	Type        string
	Config      *models.Config
	Permissions map[string]interface{}
	Secrets     map[string]interface{}
	Version     string // "stage", "new", or an explicit version label
	Comment     string
}

// Edit implements §4.4's edit operation.
func (c *Controller) Edit(ctx context.Context, rc RequestContext, req EditRequest) (result *models.ArtifactView, err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "edit"); err != nil {
		return nil, err
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return nil, err
		}
	}

	if len(req.Manifest) > 0 {
		a.Manifest = req.Manifest
	}
	if req.Type != "" {
		a.Type = req.Type
	}
	if len(req.Secrets) > 0 {
		a.Secrets = req.Secrets
	}
	if req.Config != nil {
		merged := cloneConfig(req.Config)
		merged.Permissions = mergePermissions(rc.User.ID, req.Permissions, parent)
		a.Config = merged
	} else if len(req.Permissions) > 0 {
		merged := cloneConfig(a.Config)
		merged.Permissions = mergePermissions(rc.User.ID, req.Permissions, parent)
		a.Config = merged
	}

	if err = validateManifest(a, parent); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a.LastModified = now
	creds := c.resolveCredentials(parent, a)

	switch req.Version {
	case "stage":
		if !a.IsStaged() {
			a.Staging = []models.StagingEntry{}
		}
		label := ""
		if len(a.Versions) > 0 {
			label = a.Versions[len(a.Versions)-1].Version
		}
		if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
			return nil, err
		}
		snapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label, Comment: req.Comment}
		if err = c.writeSnapshot(ctx, creds, a, uint(a.StageIndex()), snapshot); err != nil {
			return nil, err
		}

	default:
		label := req.Version
		if label == "" || label == "new" {
			label = "v0"
		}
		comment := req.Comment
		if comment == "" {
			comment = "Initial version"
		}
		a.Versions = append(a.Versions, models.VersionEntry{Version: label, Comment: comment, CreatedAt: now})
		a.Staging = nil
		if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
			return nil, err
		}
		snapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label, Comment: comment}
		index := uint(len(a.Versions) - 1)
		if err = c.writeSnapshot(ctx, creds, a, index, snapshot); err != nil {
			return nil, err
		}
	}

	return c.sanitize(ctx, sess, a)
}

// CommitRequest is the commit operation's input.
type CommitRequest struct {
	ArtifactID string
	Version    string // "new" or an explicit label for the version being committed
	Comment    string
}

// Commit implements §4.4's commit operation: it promotes the artifact's
// staged files and stage snapshot into a new committed version.
func (c *Controller) Commit(ctx context.Context, rc RequestContext, req CommitRequest) (result *models.ArtifactView, err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "commit"); err != nil {
		return nil, err
	}
	if !a.IsStaged() {
		return nil, apperrors.NewPreconditionError("artifact has no pending staged version to commit")
	}
	if req.Version == "stage" {
		return nil, apperrors.NewValidationError(`commit version may not be "stage"`)
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return nil, err
		}
	}

	creds := c.resolveCredentials(parent, a)
	stageIndex := uint(a.StageIndex())
	snap, err := c.readSnapshot(ctx, creds, a, stageIndex)
	if err != nil {
		return nil, err
	}

	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}

	downloadWeights := map[string]float64{}
	for _, entry := range a.Staging {
		key, kerr := c.blobKey(creds, a, stageIndex, entry.Path)
		if kerr != nil {
			return nil, kerr
		}
		if herr := store.Head(ctx, key); herr != nil {
			return nil, apperrors.NewNotFoundError("staged file " + entry.Path)
		}
		if entry.DownloadWeight > 0 {
			downloadWeights[entry.Path] = entry.DownloadWeight
		}
	}

	fileCount := 0
	prefix := c.versionPrefix(creds, a, stageIndex)
	var token *string
	for {
		page, lerr := store.List(ctx, prefix, 1000, token)
		if lerr != nil {
			return nil, lerr
		}
		fileCount += len(page.Keys)
		if page.ContinuationToken == nil {
			break
		}
		token = page.ContinuationToken
	}

	if parent != nil && parent.Config != nil && len(parent.Config.CollectionSchema) > 0 {
		if err = validateManifest(a, parent); err != nil {
			return nil, err
		}
	}

	label := req.Version
	if label == "" || label == "new" {
		label = fmt.Sprintf("v%d", stageIndex)
	}
	comment := req.Comment
	if comment == "" {
		comment = snap.Comment
	}
	now := time.Now().UTC()

	a.Manifest = snap.Manifest
	a.Config = mergeDownloadWeights(snap.Config, downloadWeights)
	a.Type = snap.Type
	a.FileCount = fileCount
	a.Versions = append(a.Versions, models.VersionEntry{Version: label, Comment: comment, CreatedAt: now})
	a.Staging = nil
	a.LastModified = now

	if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
		return nil, err
	}

	committedSnapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label, Comment: comment}
	if err = c.writeSnapshot(ctx, creds, a, uint(len(a.Versions)-1), committedSnapshot); err != nil {
		return nil, err
	}

	return c.sanitize(ctx, sess, a)
}

func mergeDownloadWeights(cfg *models.Config, weights map[string]float64) *models.Config {
	merged := cloneConfig(cfg)
	if len(weights) == 0 {
		return merged
	}
	if merged.DownloadWeights == nil {
		merged.DownloadWeights = map[string]float64{}
	}
	for k, v := range weights {
		merged.DownloadWeights[k] = v
	}
	return merged
}
