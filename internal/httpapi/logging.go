package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	sharedlog "github.com/vaultspace/artifactd/pkg/shared/logging"
)

// requestLogger logs one line per request at completion, matching the
// teacher's request-ID-then-log middleware ordering: fields are built
// with the fluent shared/logging builder rather than chained zap.Field
// calls, so every HTTP adapter in this module logs the same shape.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := sharedlog.NewFields().
				Component("httpapi").
				Operation(r.Method + " " + r.URL.Path).
				Duration(time.Since(start))
			fields["status"] = ww.Status()
			fields["request_id"] = chimw.GetReqID(r.Context())

			logger.Info("request completed", toZapFields(fields)...)
		})
	}
}

func toZapFields(f sharedlog.Fields) []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
