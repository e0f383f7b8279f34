package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/directory"
	"github.com/Yunichie/Play-This-Next/internal/logger"
	"github.com/Yunichie/Play-This-Next/internal/session"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.dir.CreateWithEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
			return
		}
		logger.Error("registration failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	sess, err := h.issuer.Issue(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	session.SetCookie(c.Writer, sess.SessionID, sess.ExpiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusCreated, gin.H{"status": "registered"})
}

// Me returns the caller's directory record for the dashboard shell.
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.dir.FindByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":        user.ID,
		"email":          user.Email,
		"display_name":   user.DisplayName,
		"avatar_url":     user.AvatarURL,
		"steam_id":       user.SteamID,
		"steam_linked":   user.SteamID != "",
		"total_games":    user.TotalGames,
		"total_playtime": user.TotalPlaytime,
	})
}
