package artifact

import (
	"context"

	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/version"
)

// ReadRequest is the read operation's input.
type ReadRequest struct {
	ArtifactID string
	Version    version.Selector
	Silent     bool
}

// Read implements §4.4's read operation: it loads the current row,
// optionally increments view_count, and, when the requested selector
// does not resolve to the artifact's current state, substitutes the
// manifest/config/type from the corresponding S3 snapshot.
func (c *Controller) Read(ctx context.Context, rc RequestContext, req ReadRequest) (result *models.ArtifactView, err error) {
	sess, err := c.deps.Pool.Begin(ctx, req.Silent)
	if err != nil {
		return nil, err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return nil, err
	}
	if err = c.authorize(ctx, rc, a, "read"); err != nil {
		return nil, err
	}

	if !req.Silent {
		if err = c.deps.Repo.IncrementCounters(ctx, sess, a.ID, 1, 0); err != nil {
			return nil, err
		}
		a.ViewCount++
	}

	sel := req.Version
	if sel == nil {
		sel = version.Null{}
	}
	index, resolveErr := version.Resolve(sel, a.Versions, a.IsStaged())
	if resolveErr != nil {
		return nil, resolveErr
	}

	// Null/Latest are served from the live row. A staged edit also writes
	// its manifest/config into the row, so while a stage is pending the row
	// reflects the staged state rather than the latest committed version.
	var currentIndex uint
	if len(a.Versions) > 0 {
		currentIndex = uint(len(a.Versions) - 1)
	}

	liveState := false
	switch sel.(type) {
	case version.Null, version.Latest:
		liveState = true
	case version.Stage:
		liveState = false
	default:
		liveState = index == currentIndex
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			parent = nil
			err = nil
		}
	}

	if !liveState {
		creds := c.resolveCredentials(parent, a)
		snap, snapErr := c.readSnapshot(ctx, creds, a, index)
		if snapErr != nil {
			return nil, snapErr
		}
		a.Manifest = snap.Manifest
		a.Config = snap.Config
		a.Type = snap.Type
	}

	if a.Type == "collection" {
		count, cerr := c.deps.Repo.CountChildren(ctx, sess, a.ID)
		if cerr != nil {
			return nil, cerr
		}
		attachChildCount(a, count)
	}
	if a.Type == "vector-collection" && c.deps.VectorDB != nil {
		n, verr := c.deps.VectorDB.Count(ctx, vectorCollectionName(a))
		if verr == nil {
			attachVectorCount(a, n)
		}
	}

	return c.sanitize(ctx, sess, a)
}

func attachChildCount(a *models.Artifact, count int) {
	if a.Config == nil {
		a.Config = &models.Config{}
	}
	a.Config.ChildCount = &count
}

func attachVectorCount(a *models.Artifact, count int) {
	if a.Config == nil {
		a.Config = &models.Config{}
	}
	a.Config.VectorCount = &count
}
