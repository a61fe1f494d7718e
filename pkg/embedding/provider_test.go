package embedding_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/embedding"
)

var _ = Describe("Resolve", func() {
	It("selects the local provider for an empty spec", func() {
		svc, err := embedding.Resolve("", embedding.Dependencies{Dimension: 128})
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Dimension()).To(Equal(128))
	})

	It("selects the local provider explicitly", func() {
		svc, err := embedding.Resolve("local:hash", embedding.Dependencies{Dimension: 64})
		Expect(err).NotTo(HaveOccurred())
		Expect(svc.Dimension()).To(Equal(64))
	})

	It("requires a langchain embedder for the langchain provider", func() {
		_, err := embedding.Resolve("langchain:text-embedding-3-small", embedding.Dependencies{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("langchain embedder not configured"))
	})

	It("requires an API key for the anthropic provider", func() {
		_, err := embedding.Resolve("anthropic:claude-3-5-haiku-latest", embedding.Dependencies{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("anthropic API key not configured"))
	})

	It("rejects an unknown provider", func() {
		_, err := embedding.Resolve("made-up-provider:x", embedding.Dependencies{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unsupported embedding provider"))
	})
})
