package artifact

import (
	"context"
	"time"
)

// ResetStatsRequest is the reset_stats operation's input.
type ResetStatsRequest struct {
	ArtifactID string
}

// ResetStats implements §4.4's reset_stats operation: it zeroes both
// counters and bumps last_modified.
func (c *Controller) ResetStats(ctx context.Context, rc RequestContext, req ResetStatsRequest) (err error) {
	sess, err := c.deps.Pool.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer func() { err = sess.Finish(err) }()

	a, err := c.loadByIdentifier(ctx, sess, req.ArtifactID, rc.Workspace)
	if err != nil {
		return err
	}
	if err = c.authorize(ctx, rc, a, "reset_stats"); err != nil {
		return err
	}

	a.ViewCount = 0
	a.DownloadCount = 0
	a.LastModified = time.Now().UTC()

	return c.deps.Repo.Update(ctx, sess, a)
}
