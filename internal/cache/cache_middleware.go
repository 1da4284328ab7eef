package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CacheKeyGenerator builds the cache key for a request.
type CacheKeyGenerator func(c *gin.Context) string

// TagGenerator returns the tags a cached response is filed under.
type TagGenerator func(c *gin.Context) []string

type cacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *cacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// DefaultKeyGenerator hashes the request URL including the query string.
func DefaultKeyGenerator(c *gin.Context) string {
	hash := sha256.Sum256([]byte(c.Request.URL.String()))
	return hex.EncodeToString(hash[:])
}

// StaticTags files every response under the same tags.
func StaticTags(tags ...string) TagGenerator {
	return func(*gin.Context) []string {
		return tags
	}
}

// CacheMiddleware serves GET responses from the cache and stores 200 responses on a miss.
// Cache failures never fail the request. When the service is Versioned, a response
// is not stored if an invalidation ran while the handler was building it.
func CacheMiddleware(service CacheService, duration time.Duration, tagGen TagGenerator, keyGen CacheKeyGenerator) gin.HandlerFunc {
	if keyGen == nil {
		keyGen = DefaultKeyGenerator
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := keyGen(c)
		versioned, _ := service.(Versioned)
		var version uint64
		if versioned != nil {
			version = versioned.Version()
		}

		cachedData, err := service.Get(c.Request.Context(), key)
		if err != nil {
			zap.L().Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		if err == nil && cachedData != nil {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cachedData)
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")
		writer := &cacheWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		c.Next()

		if versioned != nil && versioned.Version() != version {
			zap.L().Debug("cache invalidated during request, not storing", zap.String("key", key))
			return
		}
		if c.Writer.Status() == http.StatusOK {
			tags := []string{}
			if tagGen != nil {
				tags = tagGen(c)
			}
			if err := service.Set(context.Background(), key, writer.body.Bytes(), tags, duration); err != nil {
				zap.L().Warn("cache store failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
