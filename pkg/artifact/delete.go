package artifact

import (
	"context"

	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/datastorage/query"
	"github.com/vaultspace/artifactd/pkg/datastorage/repository"
	"github.com/vaultspace/artifactd/pkg/version"
)

// DeleteRequest is the delete operation's input.
type DeleteRequest struct {
	ArtifactID  string
	Version     version.Selector // non-nil removes only that version
	Recursive   bool
	DeleteFiles bool
}

// Delete implements §4.4's delete operation.
func (c *Controller) Delete(ctx context.Context, rc RequestContext, req DeleteRequest) (err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return err
	}
	if err = c.authorize(ctx, rc, a, "delete"); err != nil {
		return err
	}

	var parent *models.Artifact
	if a.ParentID != nil {
		parent, err = c.deps.Repo.GetByID(ctx, sess, *a.ParentID)
		if err != nil {
			return err
		}
	}
	creds := c.resolveCredentials(parent, a)

	if req.Version != nil {
		index, rerr := version.Resolve(req.Version, a.Versions, a.IsStaged())
		if rerr != nil {
			return rerr
		}
		a.Versions = append(a.Versions[:index], a.Versions[index+1:]...)
		if err = c.deps.Repo.Update(ctx, sess, a); err != nil {
			return err
		}
		store, serr := c.objectStoreFor(ctx, creds)
		if serr == nil {
			_ = store.DeletePrefix(ctx, c.versionPrefix(creds, a, index))
			_ = store.Delete(ctx, c.snapshotKey(creds, a, index))
		}
		return nil
	}

	if req.Recursive {
		if err = c.deleteChildren(ctx, sess, rc, a, req.DeleteFiles); err != nil {
			return err
		}
	}

	if req.DeleteFiles {
		store, serr := c.objectStoreFor(ctx, creds)
		if serr == nil {
			_ = store.DeletePrefix(ctx, c.artifactPrefix(creds, a))
		}
	}

	if a.Type == "vector-collection" && c.deps.VectorDB != nil {
		derr := c.deps.VectorDB.DeleteCollection(ctx, vectorCollectionName(a))
		c.deps.Metrics.RecordVectorOp("delete_collection", derr)
	}

	if err = c.deps.Repo.ClearParent(ctx, sess, a.ID); err != nil {
		return err
	}
	return c.deps.Repo.Delete(ctx, sess, a.ID)
}

// deleteChildren recursively removes every descendant of parent within
// the caller's transaction, before parent itself is removed. It
// bypasses query.Build's default stage-exclusion so staged descendants
// are swept up too. Matching the non-recursive delete path, each child
// is re-authorized for "delete" and, when deleteFiles is set, has its
// own object-store blob prefix wiped before its row is removed.
func (c *Controller) deleteChildren(ctx context.Context, exec repository.Executor, rc RequestContext, parent *models.Artifact, deleteFiles bool) error {
	plan := &query.Plan{
		Scope: query.Eq{Column: "parent_id", Value: parent.ID},
		Mode:  "AND",
	}
	children, _, err := c.deps.Repo.Query(ctx, exec, plan)
	if err != nil {
		return err
	}

	for i := range children {
		child := children[i]
		if err := c.authorize(ctx, rc, &child, "delete"); err != nil {
			return err
		}
		if err := c.deleteChildren(ctx, exec, rc, &child, deleteFiles); err != nil {
			return err
		}
		if deleteFiles {
			creds := c.resolveCredentials(parent, &child)
			if store, serr := c.objectStoreFor(ctx, creds); serr == nil {
				_ = store.DeletePrefix(ctx, c.artifactPrefix(creds, &child))
			}
		}
		if child.Type == "vector-collection" && c.deps.VectorDB != nil {
			derr := c.deps.VectorDB.DeleteCollection(ctx, vectorCollectionName(&child))
			c.deps.Metrics.RecordVectorOp("delete_collection", derr)
		}
		if err := c.deps.Repo.ClearParent(ctx, exec, child.ID); err != nil {
			return err
		}
		if err := c.deps.Repo.Delete(ctx, exec, child.ID); err != nil {
			return err
		}
	}
	return nil
}
