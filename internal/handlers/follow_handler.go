package handlers

import (
	"net/http"

	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow and unfollow requests
type FollowHandler struct {
	engagement *services.EngagementService
}

func NewFollowHandler(engagement *services.EngagementService) *FollowHandler {
	return &FollowHandler{engagement: engagement}
}

func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.Follow)
	g.DELETE("/users/:id/follow", h.Unfollow)
}

// Follow makes the current user follow :id. Following twice is not an error;
// "created" tells the client whether a new edge was written.
func (h *FollowHandler) Follow(c echo.Context) error {
	followeeID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	created, err := h.engagement.Follow(c.Request().Context(), getUserIDFromContext(c), followeeID)
	if err != nil {
		return httpError(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"success": true, "data": echo.Map{"following": true, "created": created}})
}

func (h *FollowHandler) Unfollow(c echo.Context) error {
	followeeID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.engagement.Unfollow(c.Request().Context(), getUserIDFromContext(c), followeeID); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
