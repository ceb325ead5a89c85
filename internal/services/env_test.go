package services

import (
	"context"
	"testing"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	t             *testing.T
	ctx           context.Context
	db            *gorm.DB
	store         *repositories.GormStore
	clock         *testutil.Clock
	indexer       *search.MemoryIndexer
	notifications *NotificationService
	timelines     *TimelineService
	engagement    *EngagementService
	accounts      *AccountService
	feed          *FeedService
	explore       *ExploreService
}

// newEnv builds the services on a fresh database. A positive timelineCap
// enables write-time fan-out with that cap.
func newEnv(t *testing.T, timelineCap int) *testEnv {
	t.Helper()
	store, db := testutil.NewStore(t)
	return newEnvOn(t, store, db, timelineCap)
}

// newPostgresEnv is newEnv on the database named by
// testutil.PostgresDSNEnv; the test is skipped without one.
func newPostgresEnv(t *testing.T, timelineCap int) *testEnv {
	t.Helper()
	store, db := testutil.NewPostgresStore(t)
	return newEnvOn(t, store, db, timelineCap)
}

func newEnvOn(t *testing.T, store *repositories.GormStore, db *gorm.DB, timelineCap int) *testEnv {
	t.Helper()
	clock := testutil.NewClock()
	indexer := search.NewMemoryIndexer()

	e := &testEnv{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		store:   store,
		clock:   clock,
		indexer: indexer,
	}
	e.notifications = NewNotificationService(store, clock.Now)
	var strategy FeedStrategy = NewReadTimeFeed(store)
	if timelineCap > 0 {
		e.timelines = NewTimelineService(store, timelineCap)
		strategy = NewWriteTimeFeed(store, e.timelines)
	}
	e.engagement = NewEngagementService(store, e.notifications, e.timelines, indexer, clock.Now)
	e.accounts = NewAccountService(store, indexer, clock.Now)
	e.feed = NewFeedService(store, strategy)
	e.explore = NewExploreService(store, clock.Now)
	return e
}

func (e *testEnv) user(username string) uint {
	e.t.Helper()
	id, err := e.accounts.CreateUser(e.ctx, username, username, username+"@example.com", "ref:"+username)
	require.NoError(e.t, err)
	return id
}

func (e *testEnv) post(owner uint, caption string) uint {
	e.t.Helper()
	id, err := e.engagement.CreatePost(e.ctx, owner, caption, nil, []models.MediaInput{
		{MediaURL: "https://cdn.example.com/" + caption + "/1.jpg"},
	})
	require.NoError(e.t, err)
	return id
}

func (e *testEnv) follow(follower, followee uint) {
	e.t.Helper()
	_, err := e.engagement.Follow(e.ctx, follower, followee)
	require.NoError(e.t, err)
}

func (e *testEnv) like(user, post uint) {
	e.t.Helper()
	_, err := e.engagement.Like(e.ctx, user, post)
	require.NoError(e.t, err)
}

func (e *testEnv) comment(user, post uint, text string) uint {
	e.t.Helper()
	c, err := e.engagement.Comment(e.ctx, user, post, text, nil)
	require.NoError(e.t, err)
	return c.ID
}

func (e *testEnv) count(model any, query string, args ...any) int64 {
	e.t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(e.t, q.Count(&n).Error)
	return n
}

func (e *testEnv) notificationCount(recipient uint, kind models.NotificationKind) int64 {
	return e.count(&models.Notification{}, "recipient_id = ? AND kind = ?", recipient, kind)
}

func (e *testEnv) loadPost(id uint) models.Post {
	e.t.Helper()
	var p models.Post
	require.NoError(e.t, e.db.First(&p, id).Error)
	return p
}

// requireCountersMatch checks that the stored like_count equals the number
// of like rows for the post.
func (e *testEnv) requireCountersMatch(postID uint) {
	e.t.Helper()
	rows, err := e.store.Repos().Likes.GetLikesCountByPostID(e.ctx, postID)
	require.NoError(e.t, err)
	require.Equal(e.t, rows, e.loadPost(postID).LikeCount, "like_count of post %d", postID)
}

func postIDs(summaries []models.PostSummary) []uint {
	ids := make([]uint, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.PostID)
	}
	return ids
}
