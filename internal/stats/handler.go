package stats

import (
	"net/http"
	"strconv"

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
	g.GET("/stats", h.summary)
	g.GET("/stats/charts", h.charts)
}

func (h *Handler) summary(c *gin.Context) {
	userID := c.GetString("userID")

	out, err := h.svc.Summary(c.Request.Context(), userID)
	if err != nil {
		logger.Error("stats summary failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) charts(c *gin.Context) {
	userID := c.GetString("userID")
	ctx := c.Request.Context()

	breakdown, err := h.svc.StatusBreakdown(ctx, userID)
	if err != nil {
		logger.Error("stats charts failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load charts"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	top, err := h.svc.TopGames(ctx, userID, limit)
	if err != nil {
		logger.Error("stats charts failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load charts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status_breakdown": breakdown,
		"top_games":        top,
	})
}
