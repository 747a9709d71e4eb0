package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/middleware"
	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/response"
)

// sessionOrAbort returns the authenticated session or writes a 401.
func sessionOrAbort(c *gin.Context) (models.Session, bool) {
	session, ok := middleware.CurrentSession(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return models.Session{}, false
	}
	return *session, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation(err, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query parameters"))
		return false
	}
	return true
}

func cacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ExtractMeta(c)
}
