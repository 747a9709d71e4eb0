package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/pkg/middleware/requestid"
)

// Keys rendered into the envelope "meta" object.
const (
	MetaCacheHit       = "cache_hit"
	MetaRequestID      = "request_id"
	MetaProcessingTime = "processing_time_ms"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "request_start"
)

// WithResponseMeta starts the per-request meta map with the correlation id and the request start time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		if id := requestid.Value(c); id != "" {
			SetMeta(c, MetaRequestID, id)
		}
		c.Next()
	}
}

// SetMeta records one meta entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaMap(c)[key] = value
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// ExtractMeta returns the recorded meta with the elapsed processing time stamped,
// or nil when the handler recorded nothing.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[MetaProcessingTime] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func metaMap(c *gin.Context) map[string]interface{} {
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
