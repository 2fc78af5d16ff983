package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Writers are pooled; export downloads can run many per second during
// month-end closing.
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter wraps http.ResponseWriter with gzip compression
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	statusCode int
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gzipWriter.Write(b)
}

// GzipHandler compresses responses for clients that accept gzip. JSON and
// CSV bodies shrink well enough to matter on large settlement exports.
func GzipHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "" && !compressibleContentType(contentType) {
				next.ServeHTTP(w, r)
				return
			}

			gz := gzipWriterPool.Get().(*gzip.Writer)
			defer func() {
				gz.Close()
				gzipWriterPool.Put(gz)
			}()
			gz.Reset(w)

			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Vary", "Accept-Encoding")
			w.Header().Del("Content-Length")

			gzipW := &gzipResponseWriter{ResponseWriter: w, gzipWriter: gz}
			next.ServeHTTP(gzipW, r)

			if logger != nil {
				logger.Debug("response compressed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", gzipW.statusCode),
				)
			}
		})
	}
}

func compressibleContentType(contentType string) bool {
	prefixes := []string{
		"text/",
		"application/json",
		"application/xml",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
