package recommend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/logger"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/recommendations", h.recommendations)
}

func (h *Handler) recommendations(c *gin.Context) {
	userID := c.GetString("userID")

	recs, err := h.svc.Recommend(c.Request.Context(), userID, c.Query("query"))
	if errors.Is(err, ErrEmptyLibrary) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no games in library"})
		return
	}
	if errors.Is(err, ErrModelUnavailable) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "recommendations unavailable"})
		return
	}
	if err != nil {
		logger.Error("recommendations failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}
