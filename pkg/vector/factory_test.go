package vector_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/vaultspace/artifactd/internal/config"
	"github.com/vaultspace/artifactd/pkg/vector"
)

var _ = Describe("Factory", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("when disabled", func() {
		It("falls back to the memory database", func() {
			factory := vector.NewFactory(&config.VectorDBConfig{Enabled: false}, nil, zap.NewNop())
			db, err := factory.CreateDatabase(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(db).NotTo(BeNil())
		})
	})

	Context("when backend is memory", func() {
		It("creates a memory database", func() {
			factory := vector.NewFactory(&config.VectorDBConfig{Enabled: true, Backend: "memory"}, nil, zap.NewNop())
			db, err := factory.CreateDatabase(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(db).NotTo(BeNil())
		})
	})

	Context("when backend is postgresql without a connection", func() {
		It("requires a database connection", func() {
			factory := vector.NewFactory(&config.VectorDBConfig{Enabled: true, Backend: "postgresql"}, nil, zap.NewNop())
			db, err := factory.CreateDatabase(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("main database connection not available"))
			Expect(db).To(BeNil())
		})
	})

	Context("when backend is unsupported", func() {
		It("returns an error", func() {
			factory := vector.NewFactory(&config.VectorDBConfig{Enabled: true, Backend: "unsupported"}, nil, zap.NewNop())
			db, err := factory.CreateDatabase(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported vector database backend"))
			Expect(db).To(BeNil())
		})
	})

	Context("when backend is a known-but-unimplemented product", func() {
		It("returns a not-implemented error", func() {
			factory := vector.NewFactory(&config.VectorDBConfig{Enabled: true, Backend: "pinecone"}, nil, zap.NewNop())
			db, err := factory.CreateDatabase(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not implemented yet"))
			Expect(db).To(BeNil())
		})
	})
})
