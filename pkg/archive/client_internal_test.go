package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestArchiveInternal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Archive Internal Suite")
}

func newFakeZenodo() *httptest.Server {
	mux := http.NewServeMux()
	bearer := "Bearer test-token"

	depositionPayload := func(w http.ResponseWriter, host string) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           42,
			"conceptrecid": "conc-42",
			"links": map[string]string{
				"bucket": fmt.Sprintf("http://%s/bucket/42", host),
				"html":   "http://example.invalid/record/42",
			},
			"doi": "10.5281/zenodo.42",
		})
	}

	mux.HandleFunc("/deposit/depositions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != bearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		depositionPayload(w, r.Host)
	})
	mux.HandleFunc("/deposit/depositions/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != bearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		depositionPayload(w, r.Host)
	})
	mux.HandleFunc("/deposit/depositions/42/actions/publish", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != bearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		depositionPayload(w, r.Host)
	})
	mux.HandleFunc("/deposit/depositions/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 404, "message": "deposition not found"})
	})
	mux.HandleFunc("/bucket/42/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != bearer {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return httptest.NewServer(mux)
}

var _ = Describe("zenodoClient", func() {
	var (
		server *httptest.Server
		client *zenodoClient
		ctx    context.Context
	)

	BeforeEach(func() {
		server = newFakeZenodo()
		client = &zenodoClient{baseURL: server.URL, token: "test-token", http: server.Client()}
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	It("creates a new deposition when no existing ref is given", func() {
		ref, err := client.CreateOrReuseDeposition(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.ID).To(Equal(int64(42)))
		Expect(ref.ConceptRecID).To(Equal("conc-42"))
		Expect(ref.BucketURL).To(ContainSubstring("/bucket/42"))
	})

	It("reuses an existing deposition by id", func() {
		ref, err := client.CreateOrReuseDeposition(ctx, &DepositionRef{ID: 42})
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.ID).To(Equal(int64(42)))
	})

	It("surfaces a normalized error for an unknown deposition", func() {
		_, err := client.CreateOrReuseDeposition(ctx, &DepositionRef{ID: 99})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("deposition not found"))
	})

	It("updates metadata on an existing deposition", func() {
		ref := &DepositionRef{ID: 42}
		err := client.UpdateMetadata(ctx, ref, Metadata{Title: "t", Description: "d", UploadType: "dataset"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("imports a file by streaming from the source URL into the bucket", func() {
		fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("file contents"))
		}))
		defer fileServer.Close()

		ref, err := client.CreateOrReuseDeposition(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		err = client.ImportFile(ctx, ref, "manifest.json", fileServer.URL)
		Expect(err).NotTo(HaveOccurred())
	})

	It("refuses to import a file without a bucket URL", func() {
		err := client.ImportFile(ctx, &DepositionRef{ID: 42}, "manifest.json", "http://example.invalid")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("no upload bucket"))
	})

	It("publishes a deposition", func() {
		record, err := client.Publish(ctx, &DepositionRef{ID: 42})
		Expect(err).NotTo(HaveOccurred())
		Expect(record.ID).To(Equal(int64(42)))
		Expect(record.DOI).To(Equal("10.5281/zenodo.42"))
	})
})
