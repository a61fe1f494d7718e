package vector_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/vector"
)

func TestVector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Vector Database Suite")
}

var _ = Describe("MemoryDatabase", func() {
	var (
		db  *vector.MemoryDatabase
		ctx context.Context
	)

	BeforeEach(func() {
		db = vector.NewMemoryDatabase()
		ctx = context.Background()
		Expect(db.CreateCollection(ctx, "ws^alias", vector.CollectionConfig{Size: 3, Distance: "Cosine"})).To(Succeed())
	})

	Describe("CreateCollection", func() {
		It("rejects creating the same collection twice", func() {
			err := db.CreateCollection(ctx, "ws^alias", vector.CollectionConfig{Size: 3})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Upsert and Get", func() {
		It("stores and retrieves a point", func() {
			err := db.Upsert(ctx, "ws^alias", []vector.Point{
				{ID: "p1", Vector: []float64{1, 0, 0}, Payload: map[string]interface{}{"label": "a"}},
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := db.Get(ctx, "ws^alias", "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Payload["label"]).To(Equal("a"))
		})

		It("rejects an empty point id", func() {
			err := db.Upsert(ctx, "ws^alias", []vector.Point{{Vector: []float64{1}}})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an empty vector", func() {
			err := db.Upsert(ctx, "ws^alias", []vector.Point{{ID: "p1"}})
			Expect(err).To(HaveOccurred())
		})

		It("errors on an unknown collection", func() {
			_, err := db.Get(ctx, "missing", "p1")
			Expect(err).To(HaveOccurred())
		})

		It("errors on a missing point", func() {
			_, err := db.Get(ctx, "ws^alias", "missing")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(db.Upsert(ctx, "ws^alias", []vector.Point{
				{ID: "exact", Vector: []float64{1, 0, 0}},
				{ID: "close", Vector: []float64{0.9, 0.1, 0}},
				{ID: "orthogonal", Vector: []float64{0, 1, 0}},
			})).To(Succeed())
		})

		It("ranks results by descending similarity", func() {
			results, err := db.Search(ctx, "ws^alias", []float64{1, 0, 0}, 10, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal("exact"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.0001))
			Expect(results[1].ID).To(Equal("close"))
		})

		It("honors limit", func() {
			results, err := db.Search(ctx, "ws^alias", []float64{1, 0, 0}, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
		})

		It("applies a payload filter", func() {
			Expect(db.Upsert(ctx, "ws^alias", []vector.Point{
				{ID: "tagged", Vector: []float64{1, 0, 0}, Payload: map[string]interface{}{"kind": "doc"}},
			})).To(Succeed())

			results, err := db.Search(ctx, "ws^alias", []float64{1, 0, 0}, 10, vector.SearchFilter{"kind": "doc"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("tagged"))
		})
	})

	Describe("Scroll", func() {
		It("paginates in id order", func() {
			Expect(db.Upsert(ctx, "ws^alias", []vector.Point{
				{ID: "b", Vector: []float64{1}},
				{ID: "a", Vector: []float64{1}},
				{ID: "c", Vector: []float64{1}},
			})).To(Succeed())

			page, total, err := db.Scroll(ctx, "ws^alias", 0, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(3))
			Expect(page).To(HaveLen(2))
			Expect(page[0].ID).To(Equal("a"))
			Expect(page[1].ID).To(Equal("b"))
		})
	})

	Describe("Delete and Count", func() {
		It("removes points by id", func() {
			Expect(db.Upsert(ctx, "ws^alias", []vector.Point{
				{ID: "p1", Vector: []float64{1}},
				{ID: "p2", Vector: []float64{1}},
			})).To(Succeed())

			Expect(db.Delete(ctx, "ws^alias", []string{"p1"})).To(Succeed())

			count, err := db.Count(ctx, "ws^alias")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("DeleteCollection", func() {
		It("removes the collection and its points", func() {
			Expect(db.Upsert(ctx, "ws^alias", []vector.Point{{ID: "p1", Vector: []float64{1}}})).To(Succeed())
			Expect(db.DeleteCollection(ctx, "ws^alias")).To(Succeed())

			_, err := db.Count(ctx, "ws^alias")
			Expect(err).To(HaveOccurred())
		})
	})
})
