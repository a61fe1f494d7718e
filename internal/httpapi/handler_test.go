package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vaultspace/artifactd/pkg/artifact"
)

// withURLParams mirrors the corpus's own chi handler tests
// (test/unit/datastorage/workflow_lifecycle_handler_test.go): inject a
// route context directly rather than routing through a live mux.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

var _ = Describe("Handler", func() {
	var (
		controller *artifact.Controller
		handler    *Handler
	)

	BeforeEach(func() {
		controller = newTestController()
		handler = NewHandler(controller, http.DefaultClient, nil)
	})

	Describe("HandleHealthz", func() {
		It("reports ok", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rr := httptest.NewRecorder()

			handler.HandleHealthz(rr, req)

			Expect(rr.Code).To(Equal(http.StatusOK))
			var body map[string]string
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	Describe("HandleRead", func() {
		It("returns a created artifact as JSON", func() {
			rc := artifact.RequestContext{Workspace: "ws1"}
			created, err := controller.Create(context.Background(), rc, artifact.CreateRequest{
				Type:     "dataset",
				Alias:    "widgets",
				Manifest: map[string]interface{}{"name": "widgets"},
				Version:  "new",
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/ws1/artifacts/widgets", nil)
			req = withURLParams(req, map[string]string{"workspace": "ws1", "alias": "widgets"})
			rr := httptest.NewRecorder()

			handler.HandleRead(rr, req)

			Expect(rr.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body["id"]).To(Equal(created.ID))
		})

		It("maps a missing artifact to a problem+json 404", func() {
			req := httptest.NewRequest(http.MethodGet, "/ws1/artifacts/nope", nil)
			req = withURLParams(req, map[string]string{"workspace": "ws1", "alias": "nope"})
			rr := httptest.NewRecorder()

			handler.HandleRead(rr, req)

			Expect(rr.Code).To(Equal(http.StatusNotFound))
			Expect(rr.Header().Get("Content-Type")).To(Equal("application/problem+json"))
			var body map[string]string
			Expect(json.Unmarshal(rr.Body.Bytes(), &body)).To(Succeed())
			Expect(body["detail"]).NotTo(BeEmpty())
		})
	})

	Describe("HandleListChildren", func() {
		It("lists the children created under a parent", func() {
			rc := artifact.RequestContext{Workspace: "ws1"}
			parent, err := controller.Create(context.Background(), rc, artifact.CreateRequest{
				Type:     "collection",
				Alias:    "parent",
				Manifest: map[string]interface{}{"name": "parent"},
				Version:  "new",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = controller.Create(context.Background(), rc, artifact.CreateRequest{
				ParentID: parent.ID,
				Type:     "dataset",
				Alias:    "child",
				Manifest: map[string]interface{}{"name": "child"},
				Version:  "new",
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/ws1/artifacts/parent/children", nil)
			req = withURLParams(req, map[string]string{"workspace": "ws1", "alias": "parent"})
			rr := httptest.NewRecorder()

			handler.HandleListChildren(rr, req)

			Expect(rr.Code).To(Equal(http.StatusOK))
		})

		It("rejects a malformed filters parameter", func() {
			req := httptest.NewRequest(http.MethodGet, "/ws1/artifacts/parent/children?filters=not-json", nil)
			req = withURLParams(req, map[string]string{"workspace": "ws1", "alias": "parent"})
			rr := httptest.NewRecorder()

			handler.HandleListChildren(rr, req)

			Expect(rr.Code).To(Equal(http.StatusBadRequest))
		})
	})
})

// HandleFiles's blob-proxy and list-files paths both reach into an
// object-store client; they're exercised indirectly by
// pkg/artifact's own Controller tests (files_test.go) against a fake S3
// upstream. Re-deriving that harness here would just duplicate it, so
// this suite sticks to the routes Read/ListChildren/Healthz that don't
// need an object store to answer.
