package artifact

import (
	"context"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/version"
)

// PutFileRequest is the put_file operation's input.
type PutFileRequest struct {
	ArtifactID     string
	Path           string
	DownloadWeight float64
}

// PutFileResult carries the minted presigned upload URL.
type PutFileResult struct {
	URL string
}

// PutFile implements §4.4's put_file operation.
func (c *Controller) PutFile(ctx context.Context, rc RequestContext, req PutFileRequest) (result *PutFileResult, err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "put_file"); err != nil {
		return nil, err
	}
	if !a.IsStaged() {
		return nil, apperrors.NewPreconditionError("put_file requires a pending staged version; edit(version=\"stage\") first")
	}
	if req.DownloadWeight < 0 {
		return nil, apperrors.NewValidationError("download_weight must not be negative")
	}
	if err = c.checkPresignLimit(ctx, rc); err != nil {
		return nil, err
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
	key, err := c.blobKey(creds, a, stageIndex, req.Path)
	if err != nil {
		return nil, err
	}

	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}
	url, err := store.PresignPut(ctx, key, c.deps.PresignTTL)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i, entry := range a.Staging {
		if entry.Path == req.Path {
			a.Staging[i].DownloadWeight = req.DownloadWeight
			replaced = true
			break
		}
	}
	if !replaced {
		a.Staging = append(a.Staging, models.StagingEntry{Path: req.Path, DownloadWeight: req.DownloadWeight})
	}

	label := ""
	if len(a.Versions) > 0 {
		label = a.Versions[len(a.Versions)-1].Version
	}
	if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
		return nil, err
	}
	snapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label}
	if err = c.writeSnapshot(ctx, creds, a, stageIndex, snapshot); err != nil {
		return nil, err
	}

	return &PutFileResult{URL: url}, nil
}

// RemoveFileRequest is the remove_file operation's input.
type RemoveFileRequest struct {
	ArtifactID string
	Path       string
}

// RemoveFile implements §4.4's remove_file operation.
func (c *Controller) RemoveFile(ctx context.Context, rc RequestContext, req RemoveFileRequest) (err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return err
	}
	if err = c.authorize(ctx, rc, a, "remove_file"); err != nil {
		return err
	}
	if !a.IsStaged() {
		return apperrors.NewPreconditionError("remove_file requires a pending staged version")
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return err
		}
	}
	creds := c.resolveCredentials(parent, a)
	stageIndex := uint(a.StageIndex())
	key, err := c.blobKey(creds, a, stageIndex, req.Path)
	if err != nil {
		return err
	}

	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return err
	}
	if err = store.Delete(ctx, key); err != nil {
		return err
	}

	remaining := a.Staging[:0]
	for _, entry := range a.Staging {
		if entry.Path != req.Path {
			remaining = append(remaining, entry)
		}
	}
	a.Staging = remaining

	if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
		return err
	}

	label := ""
	if len(a.Versions) > 0 {
		label = a.Versions[len(a.Versions)-1].Version
	}
	snapshot := models.Snapshot{Manifest: a.Manifest, Config: a.Config, Type: a.Type, Version: label}
	return c.writeSnapshot(ctx, creds, a, stageIndex, snapshot)
}

// GetFileRequest is the get_file operation's input.
type GetFileRequest struct {
	ArtifactID string
	Path       string
	Version    version.Selector // nil selects the current version
	Silent     bool
}

// GetFileResult carries the minted presigned download URL.
type GetFileResult struct {
	URL string
}

// GetFile implements §4.4's get_file operation.
func (c *Controller) GetFile(ctx context.Context, rc RequestContext, req GetFileRequest) (result *GetFileResult, err error) {
	sess, err := c.deps.Pool.Begin(ctx, req.Silent)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "get_file"); err != nil {
		return nil, err
	}

	sel := req.Version
	if sel == nil {
		sel = version.Null{}
	}
	index, err := version.Resolve(sel, a.Versions, a.IsStaged())
	if err != nil {
		return nil, err
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return nil, err
		}
	}
	creds := c.resolveCredentials(parent, a)

	key, err := c.blobKey(creds, a, index, req.Path)
	if err != nil {
		return nil, err
	}

	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err = store.Head(ctx, key); err != nil {
		return nil, apperrors.NewNotFoundError("file " + req.Path)
	}

	url, err := store.PresignGet(ctx, key, c.deps.PresignTTL)
	if err != nil {
		return nil, err
	}

	if !req.Silent {
		weight := downloadWeightFor(a, req.Path)
		if err = c.deps.Repo.IncrementCounters(ctx, sess, a.ID, 0, weight); err != nil {
			return nil, err
		}
	}

	return &GetFileResult{URL: url}, nil
}

func downloadWeightFor(a *models.Artifact, path string) float64 {
	for _, entry := range a.Staging {
		if entry.Path == path {
			return entry.DownloadWeight
		}
	}
	if a.Config != nil {
		if w, ok := a.Config.DownloadWeights[path]; ok {
			return w
		}
	}
	return 0
}

// ListFilesRequest is the list_files operation's input.
type ListFilesRequest struct {
	ArtifactID        string
	Version           version.Selector
	Limit             int32
	ContinuationToken *string
}

// ListFilesResult is one page of a version's file listing.
type ListFilesResult struct {
	Paths             []string
	ContinuationToken *string
}

// ListFiles implements §4.4's list_files operation.
func (c *Controller) ListFiles(ctx context.Context, rc RequestContext, req ListFilesRequest) (result *ListFilesResult, err error) {
	sess, err := c.deps.Pool.Begin(ctx, true)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "list_files"); err != nil {
		return nil, err
	}

	sel := req.Version
	if sel == nil {
		sel = version.Null{}
	}
	index, err := version.Resolve(sel, a.Versions, a.IsStaged())
	if err != nil {
		return nil, err
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return nil, err
		}
	}
	creds := c.resolveCredentials(parent, a)

	store, err := c.objectStoreFor(ctx, creds)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 1000
	}
	page, err := store.List(ctx, c.versionPrefix(creds, a, index), limit, req.ContinuationToken)
	if err != nil {
		return nil, err
	}

	return &ListFilesResult{Paths: page.Keys, ContinuationToken: page.ContinuationToken}, nil
}

// checkPresignLimit enforces the configured rate limit on presign
// minting, when one is wired. A nil limiter means no limit applies.
func (c *Controller) checkPresignLimit(ctx context.Context, rc RequestContext) error {
	if c.deps.PresignLimit == nil {
		return nil
	}
	allowed, err := c.deps.PresignLimit.Allow(ctx, rc.Workspace, rc.User.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.New(apperrors.ErrorTypeRateLimit, "presign rate limit exceeded")
	}
	return nil
}
