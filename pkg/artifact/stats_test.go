package artifact

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/permission"
)

var _ = Describe("Controller ResetStats", func() {
	var (
		h   *testHarness
		c   *Controller
		ctx context.Context
		rc  RequestContext
	)

	BeforeEach(func() {
		h = newTestHarness()
		c = h.newController()
		ctx = context.Background()
		rc = RequestContext{User: permission.User{ID: "alice"}, Workspace: "ws1"}
	})

	AfterEach(func() {
		h.close()
	})

	It("zeroes both counters", func() {
		created, err := c.Create(ctx, rc, CreateRequest{
			Alias: "s1", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID})
		Expect(err).NotTo(HaveOccurred())

		view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID, Silent: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(view.ViewCount).To(Equal(float64(1)))

		err = c.ResetStats(ctx, rc, ResetStatsRequest{ArtifactID: created.ID})
		Expect(err).NotTo(HaveOccurred())

		view, err = c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID, Silent: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(view.ViewCount).To(Equal(float64(0)))
		Expect(view.DownloadCount).To(Equal(float64(0)))
	})
})
