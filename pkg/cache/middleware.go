package cache

import (
	"bytes"
	"net/http"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

// cacheResponseWriter wraps http.ResponseWriter to capture the response body
// and status code so they can be stored in the cache.
type cacheResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *cacheResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware returns HTTP middleware that caches GET responses in the
// provided LRUCache. The cache key is the resolved merchant plus the full
// request URI. The merchant comes from the tenant context, not the URI:
// tenancy resolution also accepts the X-Merchant header, so two merchants
// can legitimately request the same URI and must never share an entry.
//
// Behavior:
//   - Only GET requests are cached; all other methods pass through.
//   - On cache hit: the cached body is replayed with its original
//     Content-Type and a 200 status. An X-Cache: HIT header is added.
//   - On cache miss: the handler is called; if it returns 200, the response
//     body and content type are stored. An X-Cache: MISS header is added.
//   - Non-200 responses are never cached.
func Middleware(c *LRUCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			key := tenancy.MerchantFromContext(r.Context()) + "\x00" + r.URL.RequestURI()

			if body, contentType, ok := c.Get(key); ok {
				if contentType != "" {
					w.Header().Set("Content-Type", contentType)
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(body)
				return
			}

			crw := &cacheResponseWriter{
				ResponseWriter: w,
			}
			crw.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(crw, r)

			if crw.statusCode == http.StatusOK {
				c.Set(key, crw.body.Bytes(), crw.Header().Get("Content-Type"))
			}
		})
	}
}
