// Package services holds the engagement, notification, feed and explore
// logic. Every mutation runs as one Store transaction; collaborators outside
// the store are called only after commit.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"gorm.io/gorm"
)

// DefaultNow is the production clock. Timestamps are kept at microsecond
// precision so they survive a round trip through Postgres unchanged.
func DefaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// loadErr turns a missing row into a NotFound error and wraps anything else.
func loadErr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.New(errorx.NotFound, "%s %d not found", what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
