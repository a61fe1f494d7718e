package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires h's handlers behind chi, matching the endpoint set
// §6 names plus a liveness route.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.HandleHealthz)

	r.Route("/{workspace}/artifacts/{alias}", func(sr chi.Router) {
		sr.Get("/", h.HandleRead)
		sr.Get("/children", h.HandleListChildren)
		sr.Get("/files/*", h.HandleFiles)
	})

	return r
}
