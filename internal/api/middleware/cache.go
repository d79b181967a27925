package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
)

const cacheKeyPrefix = "http:cache:"

// CacheMiddleware caches successful GET responses in the shared cache.
// Only routes whose body does not depend on the caller may be wrapped.
type CacheMiddleware struct {
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCacheMiddleware creates a new cache middleware. A nil cache disables it.
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, metrics: metrics}
}

type cachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Wrap caches next's 200 responses for ttlSeconds. A request sent with
// Cache-Control: no-cache skips the lookup but still refreshes the entry.
func (m *CacheMiddleware) Wrap(ttlSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.cache == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := cacheKey(r)

			if !strings.Contains(r.Header.Get("Cache-Control"), "no-cache") {
				if hit, ok := m.lookup(r, key); ok {
					observability.RecordCacheHit(ctx, m.metrics, "http")
					w.Header().Set("X-Cache", "HIT")
					w.Header().Set("Content-Type", hit.ContentType)
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write(hit.Body)
					return
				}
			}

			observability.RecordCacheMiss(ctx, m.metrics, "http")
			w.Header().Set("X-Cache", "MISS")

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
			next.ServeHTTP(recorder, r)
			if recorder.statusCode != http.StatusOK || recorder.body.Len() == 0 {
				return
			}

			encoded, err := json.Marshal(cachedResponse{
				ContentType: w.Header().Get("Content-Type"),
				Body:        recorder.body.Bytes(),
			})
			if err == nil {
				err = m.cache.Set(ctx, key, encoded, ttlSeconds)
			}
			if err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("path", r.URL.Path).Msg("failed to cache response")
			}
		})
	}
}

func (m *CacheMiddleware) lookup(r *http.Request, key string) (*cachedResponse, bool) {
	raw, err := m.cache.Get(r.Context(), key)
	if err != nil {
		return nil, false
	}
	var hit cachedResponse
	if err := json.Unmarshal(raw, &hit); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("dropping unreadable cached response")
		_ = m.cache.Delete(r.Context(), key)
		return nil, false
	}
	if hit.ContentType == "" {
		hit.ContentType = "application/json"
	}
	return &hit, true
}

// cacheKey hashes method, path and the query with its parameters sorted, so
// ?a=1&b=2 and ?b=2&a=1 share an entry
func cacheKey(r *http.Request) string {
	key := r.Method + ":" + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.Query().Encode()
	}
	hash := sha256.Sum256([]byte(key))
	return cacheKeyPrefix + hex.EncodeToString(hash[:])
}

// responseRecorder tees the response into a buffer
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.written {
		return
	}
	r.statusCode = statusCode
	r.written = true
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
