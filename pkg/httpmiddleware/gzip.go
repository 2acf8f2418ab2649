package httpmiddleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
)

// gzipMinSize is the smallest response worth compressing.
const gzipMinSize = 1024

// Gzip compresses responses for clients that accept gzip. Bodies shorter
// than gzipMinSize are sent as is.
func Gzip(level int) Middleware {
	pool := sync.Pool{New: func() any {
		zw, err := pgzip.NewWriterLevel(nil, level)
		if err != nil {
			zw = pgzip.NewWriter(nil)
		}
		return zw
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if !acceptsGzip(r) || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipWriter{ResponseWriter: w, pool: &pool}
			next.ServeHTTP(gw, r)
			gw.Close()
		})
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, q, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(enc), "gzip") && strings.TrimSpace(q) != "q=0" {
			return true
		}
	}
	return false
}

// gzipWriter buffers the start of the body to decide whether to compress.
type gzipWriter struct {
	http.ResponseWriter
	pool *sync.Pool

	status      int
	buf         []byte
	zw          *pgzip.Writer
	passthrough bool
}

func (g *gzipWriter) WriteHeader(code int) {
	if g.status == 0 {
		g.status = code
	}
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	if g.status == 0 {
		g.status = http.StatusOK
	}
	switch {
	case g.zw != nil:
		return g.zw.Write(b)
	case g.passthrough:
		return g.ResponseWriter.Write(b)
	}

	g.buf = append(g.buf, b...)
	if len(g.buf) < gzipMinSize {
		return len(b), nil
	}
	if err := g.start(); err != nil {
		return 0, err
	}
	return len(b), nil
}

// start decides on compression once enough of the body is known.
func (g *gzipWriter) start() error {
	h := g.ResponseWriter.Header()
	if h.Get("Content-Encoding") != "" || g.status == http.StatusNoContent || g.status == http.StatusNotModified {
		g.passthrough = true
		g.ResponseWriter.WriteHeader(g.status)
		_, err := g.ResponseWriter.Write(g.buf)
		g.buf = nil
		return err
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	g.ResponseWriter.WriteHeader(g.status)

	zw, _ := g.pool.Get().(*pgzip.Writer)
	zw.Reset(g.ResponseWriter)
	g.zw = zw
	_, err := g.zw.Write(g.buf)
	g.buf = nil
	return err
}

// Close flushes the body. Short bodies are written uncompressed.
func (g *gzipWriter) Close() {
	if g.zw != nil {
		_ = g.zw.Close()
		g.pool.Put(g.zw)
		g.zw = nil
		return
	}
	if g.passthrough {
		return
	}
	if g.status == 0 {
		g.status = http.StatusOK
	}
	g.passthrough = true
	g.ResponseWriter.WriteHeader(g.status)
	if len(g.buf) > 0 {
		_, _ = g.ResponseWriter.Write(g.buf)
	}
}

func (g *gzipWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}
