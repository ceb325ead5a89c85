package handlers

import (
	"net/http"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	engagement *services.EngagementService
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(engagement *services.EngagementService) *CommentHandler {
	return &CommentHandler{engagement: engagement}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comments", h.CreateComment)
	g.GET("/posts/:id/comments", h.GetCommentsByPost)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CreateComment handles creating a comment or a reply on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.engagement.Comment(c.Request().Context(), getUserIDFromContext(c), postID, req.Content, req.ParentID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": comment})
}

// GetCommentsByPost returns every comment on a post, oldest first
func (h *CommentHandler) GetCommentsByPost(c echo.Context) error {
	postID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	comments, err := h.engagement.ListComments(c.Request().Context(), postID)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": comments})
}

// DeleteComment deletes a comment and its replies. Allowed for the comment
// author and the post owner.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	commentID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.engagement.DeleteComment(c.Request().Context(), getUserIDFromContext(c), commentID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
