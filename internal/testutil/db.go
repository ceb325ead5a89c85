// Package testutil provides a migrated in-memory database and a controllable
// clock for package tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// PostgresDSNEnv names the variable holding a disposable Postgres database
// for tests that need real row locks and serialization failures.
const PostgresDSNEnv = "SNAPFEED_TEST_POSTGRES_DSN"

// NewDB opens a fresh in-memory sqlite database with every table migrated.
// It uses a single connection, so concurrent callers run one transaction at
// a time and never hit lock contention or retries.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:snapfeed_test_%d?mode=memory&cache=shared&_fk=1", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, repositories.AutoMigrate(db))
	return db
}

// NewPostgresDB connects to the database named by PostgresDSNEnv, migrates it
// and empties every table before and after the test. The test is skipped
// when the variable is unset.
func NewPostgresDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))

	var tables []string
	for _, model := range []any{
		&models.User{}, &models.Follow{}, &models.Post{}, &models.Media{}, &models.Like{},
		&models.Comment{}, &models.Notification{}, &models.TimelineEntry{}, &models.TimelineState{},
	} {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))
		tables = append(tables, stmt.Quote(stmt.Schema.Table))
	}
	truncate := func() error {
		return db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	require.NoError(t, truncate())
	t.Cleanup(func() {
		_ = truncate()
		_ = sqlDB.Close()
	})
	return db
}

// NewPostgresStore wraps NewPostgresDB in a GormStore with enough retries
// to absorb serialization failures under contention.
func NewPostgresStore(t testing.TB) (*repositories.GormStore, *gorm.DB) {
	db := NewPostgresDB(t)
	return repositories.NewGormStore(db, 10), db
}

// NewStore wraps NewDB in a GormStore.
func NewStore(t testing.TB) (*repositories.GormStore, *gorm.DB) {
	db := NewDB(t)
	return repositories.NewGormStore(db, 3), db
}

// Clock hands out strictly increasing instants, one step apart.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewClock() *Clock {
	return &Clock{
		now:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		step: time.Millisecond,
	}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Advance moves the clock forward without returning an instant.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Freeze makes subsequent Now calls return the same instant.
func (c *Clock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = 0
}

// CreateUser inserts a user directly, bypassing validation.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:    username,
		DisplayName: username,
		Email:       username + "@example.com",
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
