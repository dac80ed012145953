package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mealplanner/internal/domain/session"
)

const (
	sessionKey      = "planner_session"
	sessionErrorKey = "planner_session_error"
)

// resolveSession attaches the session named by the bearer token, if any.
// Failures are recorded for requireSession so that the rate limiter in
// between can still charge the caller's IP.
func resolveSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Set(sessionErrorKey, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header", nil))
			c.Next()
			return
		}
		sess, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			c.Set(sessionErrorKey, err)
			c.Next()
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// requireSession aborts requests that resolveSession could not authenticate.
func requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentSession(c) != nil {
			c.Next()
			return
		}
		value, _ := c.Get(sessionErrorKey)
		err, _ := value.(error)
		if err == nil {
			err = NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header", nil)
		}
		abortWithDomainError(c, err)
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func currentSession(c *gin.Context) *session.Session {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*session.Session)
	return sess
}
