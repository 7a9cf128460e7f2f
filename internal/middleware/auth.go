package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"school-chat-service/internal/auth"
	"school-chat-service/internal/models"
	"school-chat-service/internal/observability"
	"school-chat-service/internal/repositories"
)

const sessionContextKey = "session"

// SessionFrom returns the session placed on the context by RequireSession.
func SessionFrom(c *gin.Context) (auth.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return auth.Session{}, false
	}
	sess, ok := val.(auth.Session)
	return sess, ok
}

// RequireSession verifies the session cookie and puts the session on the
// context. Without one the client is redirected to the login entry point,
// carrying the original destination for the post-login redirect.
func RequireSession(sessions *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(auth.SessionCookie)
		if err != nil {
			redirectToLogin(c)
			return
		}

		sess, err := sessions.Verify(cookie)
		if err != nil {
			observability.IncAuthFailure("bad_session")
			redirectToLogin(c)
			return
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// RequireActiveAccount re-checks approval and ban state from the store on
// every request. A session must not outlive a ban: on ban the cookie is
// cleared and the reason surfaced.
func RequireActiveAccount(users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			redirectToLogin(c)
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), sess.UserID)
		if err != nil {
			// Account deleted out from under the session.
			http.SetCookie(c.Writer, auth.ExpiredCookie())
			redirectToLogin(c)
			return
		}

		if !user.Approved {
			observability.IncAuthFailure("unapproved")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your account is pending admin approval. Please wait."})
			return
		}

		if user.Banned {
			reason := "No reason provided"
			if user.BanReason != nil && *user.BanReason != "" {
				reason = *user.BanReason
			}
			observability.IncAuthFailure("banned")
			http.SetCookie(c.Writer, auth.ExpiredCookie())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your account has been banned. Reason: " + reason})
			return
		}

		c.Next()
	}
}

// RequireRole denies sessions whose role is outside the allowed set. No
// redirect: the caller is authenticated, just not permitted.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			redirectToLogin(c)
			return
		}

		for _, role := range roles {
			if sess.Role == role {
				c.Next()
				return
			}
		}

		observability.IncAuthFailure("wrong_role")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}

func redirectToLogin(c *gin.Context) {
	next := url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, "/login?next="+next)
	c.Abort()
}
