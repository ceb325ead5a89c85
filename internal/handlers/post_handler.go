package handlers

import (
	"net/http"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	engagement *services.EngagementService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(engagement *services.EngagementService) *PostHandler {
	return &PostHandler{engagement: engagement}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/media", h.AppendMedia)
	g.POST("/posts/:id/archive", h.ArchivePost)
}

// CreatePost handles creating a new post with at least one media item
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)
	postID, err := h.engagement.CreatePost(ctx, userID, req.Caption, req.Location, req.Media)
	if err != nil {
		return httpError(c, err)
	}

	post, err := h.engagement.GetPost(ctx, userID, postID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": post})
}

// GetPost returns a post with its media; archived posts are visible to their owner only
func (h *PostHandler) GetPost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	post, err := h.engagement.GetPost(c.Request().Context(), getUserIDFromContext(c), postID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": post})
}

func (h *PostHandler) AppendMedia(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.AppendMediaRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)
	if err := h.engagement.AppendMedia(ctx, userID, postID, req.Media); err != nil {
		return httpError(c, err)
	}

	post, err := h.engagement.GetPost(ctx, userID, postID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": post})
}

func (h *PostHandler) ArchivePost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.engagement.ArchivePost(c.Request().Context(), getUserIDFromContext(c), postID); err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"post_id": postID, "is_archived": true}})
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.engagement.DeletePost(c.Request().Context(), getUserIDFromContext(c), postID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
