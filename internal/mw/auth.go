package mw

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/auth"
)

const identityKey = "identity"

// Auth verifies the bearer token of every request and stores the caller's
// identity in the gin and request contexts. Browsers cannot set headers on
// an EventSource, so a "token" query parameter is accepted as well.
func Auth(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			Abort(c, apperr.Unauthorized("authorization header required"))
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				Abort(c, apperr.Unauthorized("token has expired"))
			} else {
				Abort(c, apperr.Unauthorized("invalid token"))
			}
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			Abort(c, apperr.Unauthorized("authentication required"))
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		Abort(c, apperr.Forbidden("insufficient role"))
	}
}

// Identity returns the identity set by Auth.
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// BearerToken returns the raw credential of the request: the bearer token
// of the Authorization header, or the "token" query parameter.
func BearerToken(c *gin.Context) string {
	return bearerToken(c)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return c.Query("token")
}
