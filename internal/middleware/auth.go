package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/telehealth-admin/internal/auth"
	apperrors "github.com/jwalitptl/telehealth-admin/pkg/errors"
	"github.com/jwalitptl/telehealth-admin/pkg/httputil"
)

const ContextSession = "session"

// Session resolves the acting user of every request and stores it in the
// request context. Requests without credentials continue anonymously;
// bad credentials are rejected.
func Session(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := resolver.Resolve(c.Request)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			c.Abort()
			return
		}
		c.Set(ContextSession, sess)
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireRole lets through authenticated sessions holding one of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := auth.FromContext(c.Request.Context())
		if !sess.IsAuthenticated() {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}
		if !sess.HasRole(roles...) {
			httputil.RespondWithError(c, apperrors.Forbidden("permission denied"))
			c.Abort()
			return
		}
		c.Next()
	}
}
