package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/confhub-api/internal/models"
	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
	"github.com/noah-isme/confhub-api/pkg/logger"
	"github.com/noah-isme/confhub-api/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated session.
const ContextUserKey = "currentUser"

// Authenticator resolves a bearer token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// JWT protects routes by requiring a valid access token whose profile still exists.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setSession(c, session)
		c.Next()
	}
}

// OptionalJWT attaches the session when a valid token is present but does not block.
func OptionalJWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.Next()
			return
		}
		if session, err := auth.Authenticate(c.Request.Context(), token); err == nil {
			setSession(c, session)
		}
		c.Next()
	}
}

// CurrentSession returns the session stored by JWT.
func CurrentSession(c *gin.Context) (*models.Session, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	session, ok := value.(*models.Session)
	return session, ok && session != nil
}

func setSession(c *gin.Context, session *models.Session) {
	c.Set(ContextUserKey, session)
	c.Set(logger.UserIDKey, session.UserID)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
