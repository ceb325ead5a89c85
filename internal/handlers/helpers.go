package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/snapfeed/backend/pkg/credentials"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ContextUserKey is where JWTAuthMiddleware stores the token claims.
const ContextUserKey = "user"

// getUserIDFromContext returns the authenticated user's id, or 0.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get(ContextUserKey).(*credentials.Claims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

// httpError maps service errors to HTTP errors. Unknown errors are logged
// and reported as 500 without their message.
func httpError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var e errorx.Error
	if !errors.As(err, &e) {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	switch e.Code {
	case errorx.NotFound:
		return echo.NewHTTPError(http.StatusNotFound, e.Message)
	case errorx.Conflict:
		return echo.NewHTTPError(http.StatusConflict, e.Message)
	case errorx.InvalidOperation:
		return echo.NewHTTPError(http.StatusBadRequest, e.Message)
	case errorx.Unauthorized:
		if getUserIDFromContext(c) == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, e.Message)
		}
		return echo.NewHTTPError(http.StatusForbidden, e.Message)
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

// bindAndValidate decodes the body into req and runs the echo validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

// queryInt reads an integer query parameter, falling back to def when it
// is missing or malformed, and clamps it to [lo, hi].
func queryInt(c echo.Context, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		v = def
	}
	return min(max(v, lo), hi)
}

func paginationMeta(page, limit int, totalItems int64) echo.Map {
	totalPages := int(math.Ceil(float64(totalItems) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      totalItems,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}
