package library

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yunichie/Play-This-Next/internal/logger"
)

type Handler struct {
	svc    *Service
	syncer *Syncer
}

func NewHandler(svc *Service, syncer *Syncer) *Handler {
	return &Handler{svc: svc, syncer: syncer}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/games", h.list)
	g.GET("/games/:id", h.get)
	g.PATCH("/games/:id", h.update)
	g.DELETE("/games/:id", h.remove)
	g.POST("/sync-steam", h.sync)
}

func (h *Handler) list(c *gin.Context) {
	userID := c.GetString("userID")

	games, err := h.svc.List(c.Request.Context(), userID, Filter{
		Status:       c.Query("status"),
		FavoriteOnly: c.Query("favorites") == "true",
		Search:       c.Query("search"),
	})
	if err != nil {
		logger.Error("list games failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games, "count": len(games)})
}

func (h *Handler) get(c *gin.Context) {
	userID := c.GetString("userID")

	game, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}

	c.JSON(http.StatusOK, game)
}

type updateRequest struct {
	Status     *string `json:"status"`
	IsFavorite *bool   `json:"is_favorite"`
	UserRating *int    `json:"user_rating"`
	UserReview *string `json:"user_review"`
}

func (h *Handler) update(c *gin.Context) {
	userID := c.GetString("userID")

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	game, err := h.svc.Apply(c.Request.Context(), userID, c.Param("id"), Update{
		Status:     req.Status,
		IsFavorite: req.IsFavorite,
		UserRating: req.UserRating,
		UserReview: req.UserReview,
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *Handler) remove(c *gin.Context) {
	userID := c.GetString("userID")

	err := h.svc.Delete(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete game"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) sync(c *gin.Context) {
	userID := c.GetString("userID")

	count, err := h.syncer.Sync(c.Request.Context(), userID)
	if errors.Is(err, ErrSteamNotLinked) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "steam account not linked"})
		return
	}
	if err != nil {
		logger.Error("steam sync failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to sync library"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}
