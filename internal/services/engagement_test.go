package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRejectsSelf(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	created, err := e.engagement.Follow(e.ctx, alice, alice)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
	assert.False(t, created)
	assert.Zero(t, e.count(&models.Follow{}, ""))
	assert.Zero(t, e.count(&models.Notification{}, ""))
}

func TestFollowIsIdempotent(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")

	created, err := e.engagement.Follow(e.ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.engagement.Follow(e.ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, int64(1), e.count(&models.Follow{}, ""))
	assert.Equal(t, int64(1), e.notificationCount(bob, models.NotificationFollow))
	assert.Zero(t, e.count(&models.Notification{}, "recipient_id = ?", alice))
}

func TestFollowUnknownUser(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	_, err := e.engagement.Follow(e.ctx, alice, 999)
	assert.ErrorIs(t, err, errorx.ErrNotFound)
	assert.Zero(t, e.count(&models.Follow{}, ""))
}

func TestUnfollowIsIdempotent(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")

	require.NoError(t, e.engagement.Unfollow(e.ctx, alice, bob))

	e.follow(alice, bob)
	require.NoError(t, e.engagement.Unfollow(e.ctx, alice, bob))
	require.NoError(t, e.engagement.Unfollow(e.ctx, alice, bob))
	assert.Zero(t, e.count(&models.Follow{}, ""))

	// A new edge after unfollow is a new state transition.
	created, err := e.engagement.Follow(e.ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), e.notificationCount(bob, models.NotificationFollow))
}

func TestCreatePost(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	_, err := e.engagement.CreatePost(e.ctx, alice, "empty", nil, nil)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)

	_, err = e.engagement.CreatePost(e.ctx, 999, "ghost", nil, []models.MediaInput{{MediaURL: "https://x/1.jpg"}})
	assert.ErrorIs(t, err, errorx.ErrNotFound)

	_, err = e.engagement.CreatePost(e.ctx, alice, "bad", nil, []models.MediaInput{{MediaURL: "https://x/1.gif", MediaType: "gif"}})
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
	assert.Zero(t, e.count(&models.Post{}, ""))

	location := "Lisbon"
	id, err := e.engagement.CreatePost(e.ctx, alice, "trip", &location, []models.MediaInput{
		{MediaURL: "https://x/a.jpg"},
		{MediaURL: "https://x/b.mp4", MediaType: models.MediaTypeVideo},
		{MediaURL: "https://x/c.jpg", MediaType: models.MediaTypeImage},
	})
	require.NoError(t, err)

	detail, err := e.engagement.GetPost(e.ctx, alice, id)
	require.NoError(t, err)
	require.Len(t, detail.Media, 3)
	for i, m := range detail.Media {
		assert.Equal(t, i+1, m.Position)
	}
	assert.Equal(t, "https://x/a.jpg", detail.Media[0].MediaURL)
	assert.Equal(t, models.MediaTypeVideo, detail.Media[1].MediaType)
	assert.Equal(t, "Lisbon", *detail.Location)
	assert.Zero(t, e.count(&models.Notification{}, ""))
}

func TestAppendMedia(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "album")

	err := e.engagement.AppendMedia(e.ctx, bob, post, []models.MediaInput{{MediaURL: "https://x/evil.jpg"}})
	assert.ErrorIs(t, err, errorx.ErrUnauthorized)

	require.NoError(t, e.engagement.AppendMedia(e.ctx, alice, post, []models.MediaInput{
		{MediaURL: "https://x/2.jpg"},
		{MediaURL: "https://x/3.jpg"},
	}))

	detail, err := e.engagement.GetPost(e.ctx, alice, post)
	require.NoError(t, err)
	require.Len(t, detail.Media, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{detail.Media[0].Position, detail.Media[1].Position, detail.Media[2].Position})
	assert.Equal(t, "https://x/3.jpg", detail.Media[2].MediaURL)
}

func TestLikeIsIdempotent(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "sunset")

	for i := 0; i < 5; i++ {
		created, err := e.engagement.Like(e.ctx, bob, post)
		require.NoError(t, err)
		assert.Equal(t, i == 0, created)
	}

	assert.Equal(t, int64(1), e.count(&models.Like{}, "post_id = ?", post))
	assert.Equal(t, int64(1), e.loadPost(post).LikeCount)
	assert.Equal(t, int64(1), e.notificationCount(alice, models.NotificationLike))
}

// On sqlite the store has a single connection, so these workers queue
// behind one another: the test covers ON CONFLICT idempotence, not lock
// contention. TestConcurrentLikesPostgres runs the same workload with real
// row locks and serialization retries.
func TestConcurrentLikesProduceOneRow(t *testing.T) {
	runConcurrentLikes(t, newEnv(t, 0))
}

func TestConcurrentLikesPostgres(t *testing.T) {
	runConcurrentLikes(t, newPostgresEnv(t, 0))
}

func runConcurrentLikes(t *testing.T, e *testEnv) {
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "sunset")
	var fans []uint
	for i := 0; i < 4; i++ {
		fans = append(fans, e.user(fmt.Sprintf("fan%d", i)))
	}

	const repeats = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	like := func(user uint) {
		defer wg.Done()
		ok, err := e.engagement.Like(e.ctx, user, post)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			created++
		}
	}
	for i := 0; i < repeats; i++ {
		wg.Add(1)
		go like(bob)
	}
	for _, f := range fans {
		wg.Add(1)
		go like(f)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1+len(fans), created)
	assert.Equal(t, int64(1), e.count(&models.Like{}, "user_id = ?", bob))
	assert.Equal(t, int64(1+len(fans)), e.loadPost(post).LikeCount)
	e.requireCountersMatch(post)
	assert.Equal(t, int64(1+len(fans)), e.notificationCount(alice, models.NotificationLike))
}

func TestLikeCounterTracksRows(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob, carol := e.user("alice"), e.user("bob"), e.user("carol")
	post := e.post(alice, "sunset")

	steps := []struct {
		user uint
		like bool
	}{
		{bob, true}, {bob, true}, {carol, true}, {bob, false}, {bob, false},
		{alice, true}, {carol, false}, {bob, true}, {carol, false},
	}
	for _, step := range steps {
		if step.like {
			_, err := e.engagement.Like(e.ctx, step.user, post)
			require.NoError(t, err)
		} else {
			require.NoError(t, e.engagement.Unlike(e.ctx, step.user, post))
		}
		e.requireCountersMatch(post)
	}
	assert.Equal(t, int64(2), e.loadPost(post).LikeCount)
}

func TestLikeMissingPost(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	_, err := e.engagement.Like(e.ctx, alice, 42)
	assert.ErrorIs(t, err, errorx.ErrNotFound)
	assert.Zero(t, e.count(&models.Like{}, ""))
}

func TestUnlike(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "sunset")

	require.NoError(t, e.engagement.Unlike(e.ctx, bob, post))
	assert.Zero(t, e.loadPost(post).LikeCount)

	e.like(bob, post)
	require.NoError(t, e.engagement.Unlike(e.ctx, bob, post))
	require.NoError(t, e.engagement.Unlike(e.ctx, bob, post))

	assert.Zero(t, e.loadPost(post).LikeCount)
	assert.Zero(t, e.count(&models.Like{}, ""))
	// The like notification stays; notifications are append-only.
	assert.Equal(t, int64(1), e.notificationCount(alice, models.NotificationLike))
}

func TestNoSelfNotification(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")
	post := e.post(alice, "mine")

	e.like(alice, post)
	e.comment(alice, post, "nice one @alice")

	assert.Zero(t, e.count(&models.Notification{}, ""))
	p := e.loadPost(post)
	assert.Equal(t, int64(1), p.LikeCount)
	assert.Equal(t, int64(1), p.CommentCount)
}

func TestComment(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "pasta")
	other := e.post(alice, "pizza")

	first, err := e.engagement.Comment(e.ctx, bob, post, "looks great", nil)
	require.NoError(t, err)
	second, err := e.engagement.Comment(e.ctx, bob, post, "looks great", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	reply, err := e.engagement.Comment(e.ctx, alice, post, "thanks", &first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *reply.ParentID)

	_, err = e.engagement.Comment(e.ctx, bob, other, "wrong thread", &first.ID)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)

	missing := uint(999)
	_, err = e.engagement.Comment(e.ctx, bob, post, "orphan", &missing)
	assert.ErrorIs(t, err, errorx.ErrNotFound)

	_, err = e.engagement.Comment(e.ctx, bob, 999, "nowhere", nil)
	assert.ErrorIs(t, err, errorx.ErrNotFound)

	_, err = e.engagement.Comment(e.ctx, bob, post, "   ", nil)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)

	assert.Equal(t, int64(3), e.loadPost(post).CommentCount)
	assert.Zero(t, e.loadPost(other).CommentCount)
	assert.Equal(t, int64(2), e.notificationCount(alice, models.NotificationComment))

	var n models.Notification
	require.NoError(t, e.db.Where("recipient_id = ? AND kind = ?", alice, models.NotificationComment).Order("id").First(&n).Error)
	require.NotNil(t, n.CommentID)
	assert.Equal(t, first.ID, *n.CommentID)
	assert.Equal(t, bob, n.ActorID)

	comments, err := e.engagement.ListComments(e.ctx, post)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID, reply.ID}, []uint{comments[0].ID, comments[1].ID, comments[2].ID})
}

func TestDeleteComment(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob, carol := e.user("alice"), e.user("bob"), e.user("carol")
	post := e.post(alice, "pasta")

	root, err := e.engagement.Comment(e.ctx, bob, post, "root", nil)
	require.NoError(t, err)
	reply, err := e.engagement.Comment(e.ctx, carol, post, "reply", &root.ID)
	require.NoError(t, err)
	_, err = e.engagement.Comment(e.ctx, bob, post, "nested", &reply.ID)
	require.NoError(t, err)
	keep := e.comment(carol, post, "standalone")

	assert.ErrorIs(t, e.engagement.DeleteComment(e.ctx, carol, root.ID), errorx.ErrUnauthorized)
	assert.ErrorIs(t, e.engagement.DeleteComment(e.ctx, carol, 999), errorx.ErrNotFound)

	// The post owner may remove any comment on the post.
	require.NoError(t, e.engagement.DeleteComment(e.ctx, alice, root.ID))

	assert.Equal(t, int64(1), e.count(&models.Comment{}, ""))
	assert.Equal(t, int64(1), e.loadPost(post).CommentCount)
	assert.Equal(t, int64(1), e.count(&models.Notification{}, "comment_id IS NOT NULL"))
	assert.Equal(t, int64(1), e.count(&models.Notification{}, "comment_id = ?", keep))
}

func TestMentions(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob, carol := e.user("alice"), e.user("bob"), e.user("carol")

	post := e.post(alice, "with @bob and @Bob, @ghost, @alice and email a@carol.io")
	assert.Equal(t, int64(1), e.notificationCount(bob, models.NotificationMention))
	assert.Zero(t, e.notificationCount(carol, models.NotificationMention))
	assert.Zero(t, e.count(&models.Notification{}, "recipient_id = ?", alice))

	// The owner gets the comment notification, not a second mention.
	e.comment(carol, post, "@alice @bob agreed")
	assert.Equal(t, int64(1), e.notificationCount(alice, models.NotificationComment))
	assert.Zero(t, e.notificationCount(alice, models.NotificationMention))
	assert.Equal(t, int64(2), e.notificationCount(bob, models.NotificationMention))
}

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol.x"}, ExtractMentions("hi @Bob, @carol.x. and @bob"))
	assert.Empty(t, ExtractMentions("mail me at me@bob.com or @ab"))
}

func TestArchivePost(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	post := e.post(alice, "old #throwback")
	e.follow(bob, alice)

	assert.ErrorIs(t, e.engagement.ArchivePost(e.ctx, bob, post), errorx.ErrUnauthorized)
	require.NoError(t, e.engagement.ArchivePost(e.ctx, alice, post))
	require.NoError(t, e.engagement.ArchivePost(e.ctx, alice, post))

	feed, err := e.feed.GetFeed(e.ctx, bob, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	_, err = e.engagement.GetPost(e.ctx, bob, post)
	assert.ErrorIs(t, err, errorx.ErrNotFound)
	_, err = e.engagement.GetPost(e.ctx, alice, post)
	assert.NoError(t, err)

	ids, err := e.indexer.SearchHashtag(e.ctx, "throwback", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeletePostCascades(t *testing.T) {
	e := newEnv(t, 3)
	alice, bob := e.user("alice"), e.user("bob")
	e.follow(bob, alice)
	_, err := e.feed.GetFeed(e.ctx, bob, 10, 0)
	require.NoError(t, err)

	post := e.post(alice, "doomed #gone")
	e.like(bob, post)
	c := e.comment(bob, post, "first")
	_, err = e.engagement.Comment(e.ctx, alice, post, "reply", &c)
	require.NoError(t, err)
	require.Equal(t, int64(2), e.count(&models.TimelineEntry{}, "post_id = ?", post))

	assert.ErrorIs(t, e.engagement.DeletePost(e.ctx, bob, post), errorx.ErrUnauthorized)
	require.NoError(t, e.engagement.DeletePost(e.ctx, alice, post))

	assert.Zero(t, e.count(&models.Post{}, ""))
	assert.Zero(t, e.count(&models.Media{}, ""))
	assert.Zero(t, e.count(&models.Like{}, ""))
	assert.Zero(t, e.count(&models.Comment{}, ""))
	assert.Zero(t, e.count(&models.Notification{}, "post_id IS NOT NULL OR comment_id IS NOT NULL"))
	assert.Zero(t, e.count(&models.TimelineEntry{}, ""))
	assert.ErrorIs(t, e.engagement.DeletePost(e.ctx, alice, post), errorx.ErrNotFound)

	ids, err := e.indexer.SearchHashtag(e.ctx, "gone", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCreatePostIndexesHashtags(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")
	first := e.post(alice, "#Sunset at the beach")
	e.post(alice, "no tags")
	second := e.post(alice, "another #sunset")

	ids, err := e.indexer.SearchHashtag(e.ctx, "#sunset", 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{second, first}, ids)
}
