package api

import (
	"errors"
	"net/http"

	"dione/internal/redisclient"
	"dione/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// login binds an upstream-authenticated user to the current session and
// merges any guest cart into theirs. Credential checking happens at the
// identity provider in front of this service; the body carries the verified
// user id.
func (h *Handler) login(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), req.UserID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if user.IsSuspended {
		c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
		return
	}

	sessionID, err := h.ensureSession(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	sess := &redisclient.Session{ID: sessionID, UserID: user.ID, Role: user.Role}
	if err := h.sessions.PutSession(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}
	c.Set(ctxUserID, user.ID)
	c.Set(ctxRole, user.Role)

	if err := h.cart.Merge(c.Request.Context(), sessionID, user.ID); err != nil {
		h.logger.Error("Guest cart merge failed",
			zap.String("session_id", sessionID), zap.Int64("user_id", user.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user_id": user.ID,
		"role":    user.Role,
	})
}

// logout drops the user binding but keeps the session id for the guest cart.
func (h *Handler) logout(c *gin.Context) {
	sessionID := c.GetString(ctxSessionID)
	if sessionID == "" {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	sess := &redisclient.Session{ID: sessionID}
	if err := h.sessions.PutSession(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
