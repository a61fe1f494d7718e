package artifact

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/datastorage/models"
	"github.com/vaultspace/artifactd/pkg/permission"
	"github.com/vaultspace/artifactd/pkg/vector"
)

var _ = Describe("Controller vector operations", func() {
	var (
		h    *testHarness
		c    *Controller
		ctx  context.Context
		rc   RequestContext
		coll *models.ArtifactView
	)

	BeforeEach(func() {
		h = newTestHarness()
		c = h.newController()
		ctx = context.Background()
		rc = RequestContext{User: permission.User{ID: "alice"}, Workspace: "ws1"}

		var err error
		coll, err = c.Create(ctx, rc, CreateRequest{
			Alias: "vc1", Type: "vector-collection", Manifest: map[string]interface{}{"name": "n", "description": "d"},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		h.close()
	})

	It("rejects vector operations against a non vector-collection artifact", func() {
		dataset, err := c.Create(ctx, rc, CreateRequest{
			Alias: "notvec", Type: "dataset", Manifest: map[string]interface{}{"name": "n", "description": "d"},
		})
		Expect(err).NotTo(HaveOccurred())

		err = c.AddVectors(ctx, rc, AddVectorsRequest{ArtifactID: dataset.ID, Points: []vector.Point{{Vector: []float64{1, 2, 3}}}})
		Expect(err).To(HaveOccurred())
	})

	It("adds, gets, lists and removes vectors", func() {
		err := c.AddVectors(ctx, rc, AddVectorsRequest{
			ArtifactID: coll.ID,
			Points: []vector.Point{
				{ID: "p1", Vector: []float64{1, 0, 0, 0, 0, 0, 0, 0}},
				{Vector: []float64{0, 1, 0, 0, 0, 0, 0, 0}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		point, err := c.GetVector(ctx, rc, GetVectorRequest{ArtifactID: coll.ID, ID: "p1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(point.Vector).To(Equal([]float64{1, 0, 0, 0, 0, 0, 0, 0}))

		listing, err := c.ListVectors(ctx, rc, ListVectorsRequest{ArtifactID: coll.ID, Limit: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(listing.Total).To(Equal(2))

		err = c.RemoveVectors(ctx, rc, RemoveVectorsRequest{ArtifactID: coll.ID, IDs: []string{"p1"}})
		Expect(err).NotTo(HaveOccurred())

		listing, err = c.ListVectors(ctx, rc, ListVectorsRequest{ArtifactID: coll.ID, Limit: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(listing.Total).To(Equal(1))
	})

	It("embeds and adds documents, then finds them again via search_by_text", func() {
		err := c.AddDocuments(ctx, rc, AddDocumentsRequest{
			ArtifactID: coll.ID,
			Documents: []Document{
				{ID: "doc1", Text: "hello world", Payload: map[string]interface{}{"lang": "en"}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		point, err := c.GetVector(ctx, rc, GetVectorRequest{ArtifactID: coll.ID, ID: "doc1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(point.Payload["text"]).To(Equal("hello world"))
		Expect(point.Payload["lang"]).To(Equal("en"))

		result, err := c.SearchByText(ctx, rc, SearchByTextRequest{
			SearchRequest: SearchRequest{ArtifactID: coll.ID, Limit: 5, WithTotal: true},
			Text:          "hello world",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Points).NotTo(BeEmpty())
		Expect(result.Points[0].ID).To(Equal("doc1"))
		Expect(*result.Total).To(Equal(1))
	})

	It("searches by raw vector", func() {
		err := c.AddVectors(ctx, rc, AddVectorsRequest{
			ArtifactID: coll.ID,
			Points: []vector.Point{
				{ID: "a", Vector: []float64{1, 0, 0, 0, 0, 0, 0, 0}},
				{ID: "b", Vector: []float64{0, 0, 0, 0, 0, 0, 0, 1}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		result, err := c.SearchByVector(ctx, rc, SearchByVectorRequest{
			SearchRequest: SearchRequest{ArtifactID: coll.ID, Limit: 1},
			Vector:        []float64{1, 0, 0, 0, 0, 0, 0, 0},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Points).To(HaveLen(1))
		Expect(result.Points[0].ID).To(Equal("a"))
	})
})
