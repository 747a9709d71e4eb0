package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/confhub-api/pkg/middleware/requestid"
)

func TestResponseMetaCarriesRequestIDAndTiming(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var captured map[string]interface{}
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		captured = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestid.HeaderKey, "req-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, captured)
	assert.Equal(t, "req-123", captured[MetaRequestID])
	assert.Equal(t, true, captured[MetaCacheHit])
	assert.Contains(t, captured, MetaProcessingTime)
}

func TestExtractMetaWithoutEntries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, ExtractMeta(c))
	assert.Nil(t, ExtractMeta(nil))

	SetMeta(c, "total", 3)
	meta := ExtractMeta(c)
	assert.Equal(t, 3, meta["total"])
	assert.NotContains(t, meta, MetaProcessingTime)
}
