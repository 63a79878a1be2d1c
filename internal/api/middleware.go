package api

import (
	"net/http"

	"dione/internal/redisclient"
	"dione/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionCookie = "dione_session"

const (
	ctxSessionID = "session_id"
	ctxUserID    = "user_id"
	ctxRole      = "role"
)

// sessionMiddleware resolves the session cookie against Redis and stashes
// the identity on the request context. Missing or expired sessions fall
// through as anonymous; cart writes provision one lazily via ensureSession.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(sessionCookie)
		if err == nil && cookie != "" {
			sess, err := h.sessions.GetSession(c.Request.Context(), cookie)
			if err == nil && sess != nil {
				c.Set(ctxSessionID, sess.ID)
				c.Set(ctxUserID, sess.UserID)
				c.Set(ctxRole, sess.Role)
			} else if err != nil {
				h.logger.Warn("Session lookup failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

// ensureSession returns the request's session id, provisioning an anonymous
// session and setting the cookie when none exists yet.
func (h *Handler) ensureSession(c *gin.Context) (string, error) {
	if id := c.GetString(ctxSessionID); id != "" {
		return id, nil
	}
	sess := &redisclient.Session{ID: redisclient.NewSessionID()}
	if err := h.sessions.PutSession(c.Request.Context(), sess); err != nil {
		return "", err
	}
	c.SetCookie(sessionCookie, sess.ID, 30*24*3600, "/", "", false, true)
	c.Set(ctxSessionID, sess.ID)
	return sess.ID, nil
}

func sessionUserID(c *gin.Context) int64 {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// cartOwner identifies whose cart the request addresses: the logged-in user
// when present, otherwise the anonymous session.
func (h *Handler) cartOwner(c *gin.Context) (store.CartOwner, error) {
	if userID := sessionUserID(c); userID > 0 {
		return store.OwnerUser(userID), nil
	}
	sessionID, err := h.ensureSession(c)
	if err != nil {
		return store.CartOwner{}, err
	}
	return store.OwnerSession(sessionID), nil
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(c) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		role := c.GetString(ctxRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}
