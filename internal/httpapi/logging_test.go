package httpapi

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("requestLogger middleware", func() {
	It("logs one completion line carrying method, status and duration", func() {
		core, logs := observer.New(zap.InfoLevel)
		logger := zap.New(core)

		r := chi.NewRouter()
		r.Use(requestLogger(logger))
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		Expect(logs.Len()).To(Equal(1))
		entry := logs.All()[0]
		fields := entry.ContextMap()
		Expect(fields["status"]).To(BeEquivalentTo(http.StatusTeapot))
		Expect(fields["operation"]).To(Equal("GET /ping"))
	})
})
