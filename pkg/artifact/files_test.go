package artifact

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/permission"
)

var _ = Describe("Controller file operations", func() {
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

	Describe("PutFile and RemoveFile", func() {
		It("rejects put_file outside a staged version", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "f1", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.PutFile(ctx, rc, PutFileRequest{ArtifactID: created.ID, Path: "data.bin"})
			Expect(err).To(HaveOccurred())
		})

		It("mints a presigned PUT url once staged, then removes the staged file", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "f2", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Edit(ctx, rc, EditRequest{ArtifactID: created.ID, Version: "stage"})
			Expect(err).NotTo(HaveOccurred())

			result, err := c.PutFile(ctx, rc, PutFileRequest{ArtifactID: created.ID, Path: "data.bin", DownloadWeight: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.URL).NotTo(BeEmpty())
			Expect(uploadTo(result.URL, []byte("payload"))).To(Succeed())

			err = c.RemoveFile(ctx, rc, RemoveFileRequest{ArtifactID: created.ID, Path: "data.bin"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("GetFile and ListFiles", func() {
		It("mints a presigned download url for a committed file and bumps download_count", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "f3", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Edit(ctx, rc, EditRequest{ArtifactID: created.ID, Version: "stage"})
			Expect(err).NotTo(HaveOccurred())

			putResult, err := c.PutFile(ctx, rc, PutFileRequest{ArtifactID: created.ID, Path: "data.bin", DownloadWeight: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(uploadTo(putResult.URL, []byte("payload"))).To(Succeed())

			committed, err := c.Commit(ctx, rc, CommitRequest{ArtifactID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(committed.Versions).To(HaveLen(1))

			getResult, err := c.GetFile(ctx, rc, GetFileRequest{ArtifactID: created.ID, Path: "data.bin"})
			Expect(err).NotTo(HaveOccurred())
			Expect(getResult.URL).NotTo(BeEmpty())

			view, err := c.Read(ctx, rc, ReadRequest{ArtifactID: created.ID, Silent: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.DownloadCount).To(Equal(float64(2)))

			listing, err := c.ListFiles(ctx, rc, ListFilesRequest{ArtifactID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(listing.Paths).To(ContainElement(HaveSuffix("data.bin")))
		})

		It("fails get_file for a path that was never uploaded", func() {
			created, err := c.Create(ctx, rc, CreateRequest{
				Alias: "f4", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.Edit(ctx, rc, EditRequest{ArtifactID: created.ID, Version: "stage"})
			Expect(err).NotTo(HaveOccurred())
			putResult, err := c.PutFile(ctx, rc, PutFileRequest{ArtifactID: created.ID, Path: "present.bin"})
			Expect(err).NotTo(HaveOccurred())
			Expect(uploadTo(putResult.URL, []byte("payload"))).To(Succeed())
			_, err = c.Commit(ctx, rc, CommitRequest{ArtifactID: created.ID})
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetFile(ctx, rc, GetFileRequest{ArtifactID: created.ID, Path: "missing.bin"})
			Expect(err).To(HaveOccurred())
		})
	})
})
