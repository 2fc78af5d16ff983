package settlementhandler

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/realtyflow/settlement-engine/internal/domain/ports"
)

// RequestLogger logs one line per request with method, path, status and
// latency
func RequestLogger(logger ports.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				ports.String("method", r.Method),
				ports.String("path", r.URL.Path),
				ports.Int("status", ww.Status()),
				ports.Int("bytes", ww.BytesWritten()),
				ports.Int64("duration_ms", time.Since(start).Milliseconds()),
				ports.String("remote", r.RemoteAddr))
		})
	}
}
