package handlers

import (
	"net/http"

	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	engagement *services.EngagementService
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(engagement *services.EngagementService) *LikeHandler {
	return &LikeHandler{engagement: engagement}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/likes", h.LikePost)
	g.DELETE("/posts/:id/likes", h.UnlikePost)
}

// LikePost handles liking a post. A repeated like is a no-op.
func (h *LikeHandler) LikePost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	created, err := h.engagement.Like(c.Request().Context(), getUserIDFromContext(c), postID)
	if err != nil {
		return httpError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"success": true, "data": echo.Map{"liked": true, "created": created}})
}

// UnlikePost handles removing a like from a post
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.engagement.Unlike(c.Request().Context(), getUserIDFromContext(c), postID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
