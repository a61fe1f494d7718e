package artifact

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/permission"
	"github.com/vaultspace/artifactd/pkg/version"
)

var _ = Describe("Controller lifecycle", func() {
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

	Describe("Create", func() {
		It("allocates an alias and writes the initial committed version", func() {
			view, err := c.Create(ctx, rc, CreateRequest{
				Type:     "dataset",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ID).To(HavePrefix("ws1/"))
			Expect(view.Versions).To(HaveLen(1))
			Expect(view.Versions[0].Version).To(Equal("v0"))
		})

		It("honors an explicit alias", func() {
			view, err := c.Create(ctx, rc, CreateRequest{
				Alias:    "my-dataset",
				Type:     "dataset",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ID).To(Equal("ws1/my-dataset"))
		})

		It("rejects a colliding alias without overwrite", func() {
			req := CreateRequest{Alias: "dup", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"}}
			_, err := c.Create(ctx, rc, req)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Create(ctx, rc, req)
			Expect(err).To(HaveOccurred())
		})

		It("stages instead of committing when version is \"stage\"", func() {
			view, err := c.Create(ctx, rc, CreateRequest{
				Alias:    "staged",
				Type:     "dataset",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
				Version:  "stage",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Versions).To(BeEmpty())
			Expect(view.Staging).NotTo(BeNil())
		})

		It("creates the backing vector collection for a vector-collection artifact", func() {
			_, err := c.Create(ctx, rc, CreateRequest{
				Alias:    "vecs",
				Type:     "vector-collection",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())
			count, err := h.vector.Count(ctx, "ws1^vecs")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})
	})

	Describe("Read", func() {
		It("increments view_count unless silent", func() {
			_, err := c.Create(ctx, rc, CreateRequest{
				Alias: "r1", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: "ws1/r1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ViewCount).To(Equal(float64(1)))

			view, err = c.Read(ctx, rc, ReadRequest{ArtifactID: "ws1/r1", Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ViewCount).To(Equal(float64(1)))
		})

		It("attaches child_count for a collection", func() {
			parent, err := c.Create(ctx, rc, CreateRequest{
				Alias: "coll", Type: "collection", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Create(ctx, rc, CreateRequest{
				ParentID: parent.ID, Alias: "child", Type: "dataset",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: parent.ID, Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Config.ChildCount).NotTo(BeNil())
			Expect(*view.Config.ChildCount).To(Equal(1))
		})
	})

	Describe("Edit and Commit", func() {
		It("stages an edit, then commits it into a new version", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "e1", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Edit(ctx, rc, EditRequest{
				ArtifactID: created.ID,
				Manifest:   map[string]interface{}{"name": "n2", "description": "d2"},
				Version:    "stage",
			})
			Expect(err).NotTo(HaveOccurred())

			putResult, err := c.PutFile(ctx, rc, PutFileRequest{ArtifactID: created.ID, Path: "data.bin"})
			Expect(err).NotTo(HaveOccurred())
			Expect(putResult.URL).NotTo(BeEmpty())
			Expect(uploadTo(putResult.URL, []byte("payload"))).To(Succeed())

			committed, err := c.Commit(ctx, rc, CommitRequest{ArtifactID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(committed.Versions).To(HaveLen(2))
			Expect(committed.Staging).To(BeEmpty())

			view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID, Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Manifest["name"]).To(Equal("n2"))
		})

		It("fails commit when there is no pending stage", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "e2", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Commit(ctx, rc, CommitRequest{ArtifactID: created.ID})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ListChildren", func() {
		It("scopes to the requested parent and sanitizes each view", func() {
			parent, err := c.Create(ctx, rc, CreateRequest{
				Alias: "p1", Type: "collection", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			for _, al := range []string{"c1", "c2"} {
				_, err := c.Create(ctx, rc, CreateRequest{
					ParentID: parent.ID, Alias: al, Type: "dataset",
					Manifest: map[string]interface{}{"name": al, "description": "d"},
				})
				Expect(err).NotTo(HaveOccurred())
			}

			result, err := c.ListChildren(ctx, rc, ListRequest{ParentID: parent.ID, Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Items).To(HaveLen(2))
		})
	})

	Describe("Delete", func() {
		It("removes a single version without deleting the row", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "d1", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			err = c.Delete(ctx, rc, DeleteRequest{ArtifactID: created.ID, Version: version.Index(0)})
			Expect(err).NotTo(HaveOccurred())

			view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID, Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Versions).To(BeEmpty())
		})

		It("recursively removes children before deleting the parent", func() {
			parent, err := c.Create(ctx, rc, CreateRequest{
				Alias: "d2", Type: "collection", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())
			child, err := c.Create(ctx, rc, CreateRequest{
				ParentID: parent.ID, Alias: "d2child", Type: "dataset",
				Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			err = c.Delete(ctx, rc, DeleteRequest{ArtifactID: parent.ID, Recursive: true})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Read(ctx, rc, ReadRequest{ArtifactID: child.ID, Silent: true})
			Expect(err).To(HaveOccurred())
			_, err = c.Read(ctx, rc, ReadRequest{ArtifactID: parent.ID, Silent: true})
			Expect(err).To(HaveOccurred())
		})
	})
})
