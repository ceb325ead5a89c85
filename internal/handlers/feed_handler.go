package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/internal/services"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// FeedHandler serves the home feed, explore and hashtag search
type FeedHandler struct {
	feed    *services.FeedService
	explore *services.ExploreService
	indexer search.Indexer
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed *services.FeedService, explore *services.ExploreService, indexer search.Indexer) *FeedHandler {
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	return &FeedHandler{feed: feed, explore: explore, indexer: indexer}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/explore", h.Explore)
	g.GET("/search/hashtags/:tag", h.SearchHashtag)
}

// GetFeed returns posts from followed users, newest first.
// Offset paging: ?limit=&offset=
// Cursor paging: ?mode=cursor, then ?before_at=&before_id= from meta.nextCursor
func (h *FeedHandler) GetFeed(c echo.Context) error {
	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)
	limit := queryInt(c, "limit", defaultPageSize, 1, maxPageSize)

	if c.QueryParam("mode") == "cursor" || c.QueryParam("before_at") != "" {
		cursor, err := parseFeedCursor(c)
		if err != nil {
			return err
		}
		posts, next, err := h.feed.GetFeedAfter(ctx, userID, cursor, limit)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"data":    posts,
			"meta": echo.Map{
				"itemsPerPage": limit,
				"hasNextPage":  next != nil,
				"nextCursor":   next,
			},
		})
	}

	offset := queryInt(c, "offset", 0, 0, math.MaxInt32)
	posts, err := h.feed.GetFeed(ctx, userID, limit, offset)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    posts,
		"meta": echo.Map{
			"offset":       offset,
			"itemsPerPage": limit,
			"hasNextPage":  len(posts) == limit,
		},
	})
}

func parseFeedCursor(c echo.Context) (*models.FeedCursor, error) {
	rawAt := c.QueryParam("before_at")
	if rawAt == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339Nano, rawAt)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid before_at")
	}
	id, err := strconv.ParseUint(c.QueryParam("before_id"), 10, 32)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid before_id")
	}
	return &models.FeedCursor{CreatedAt: at.UTC(), PostID: uint(id)}, nil
}

// Explore ranks recent posts by engagement. ?days= sets the window (default 7).
func (h *FeedHandler) Explore(c echo.Context) error {
	days := queryInt(c, "days", 7, 1, 90)
	limit := queryInt(c, "limit", defaultPageSize, 1, maxPageSize)

	posts, err := h.explore.ExplorePopular(c.Request().Context(), getUserIDFromContext(c), days, limit)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": posts})
}

// SearchHashtag returns the newest visible posts whose caption carries #tag.
func (h *FeedHandler) SearchHashtag(c echo.Context) error {
	tag := search.NormalizeTag(c.Param("tag"))
	if tag == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid tag")
	}
	limit := queryInt(c, "limit", defaultPageSize, 1, maxPageSize)

	ctx := c.Request().Context()
	ids, err := h.indexer.SearchHashtag(ctx, tag, limit)
	if err != nil {
		return httpError(c, err)
	}
	posts, err := h.feed.SummariesByIDs(ctx, getUserIDFromContext(c), ids)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": posts, "meta": echo.Map{"tag": tag}})
}
