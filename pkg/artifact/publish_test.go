package artifact

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/permission"
)

// Publish's happy path drives a real CreateOrReuseDeposition/UpdateMetadata/
// ImportFile/Publish round trip against zenodo.org or sandbox.zenodo.org;
// archive.Resolve hardcodes those hosts with no local override, so only the
// precondition and validation failures reachable before any HTTP call are
// covered here.
var _ = Describe("Controller Publish", func() {
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

	It("refuses to publish a staged, uncommitted artifact", func() {
		created, err := c.Create(ctx, rc, CreateRequest{
			Alias: "pub1", Type: "dataset",
			Manifest: map[string]interface{}{"name": "n", "description": "d"},
			Version:  "stage",
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Publish(ctx, rc, PublishRequest{ArtifactID: created.ID, To: "sandbox_zenodo"})
		Expect(err).To(HaveOccurred())
	})

	It("requires manifest.name and manifest.description", func() {
		created, err := c.Create(ctx, rc, CreateRequest{
			Alias: "pub2", Type: "dataset",
			Manifest: map[string]interface{}{"name": "", "description": ""},
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Publish(ctx, rc, PublishRequest{ArtifactID: created.ID, To: "sandbox_zenodo"})
		Expect(err).To(HaveOccurred())
	})
})
