package services

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedExample(t *testing.T) {
	for _, tc := range []struct {
		name string
		cap  int
	}{
		{"read time", 0},
		{"write time", 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.cap)
			alice, bob, carol, dave := e.user("alice"), e.user("bob"), e.user("carol"), e.user("dave")
			e.follow(alice, bob)
			e.follow(alice, carol)

			own := e.post(alice, "hello")
			sunset := e.post(bob, "Sunset")
			pasta := e.post(carol, "Best pasta")
			e.post(dave, "not followed")
			e.like(alice, sunset)

			feed, err := e.feed.GetFeed(e.ctx, alice, 10, 0)
			require.NoError(t, err)
			assert.Equal(t, []uint{pasta, sunset, own}, postIDs(feed))

			assert.Equal(t, "carol", feed[0].Username)
			assert.Equal(t, carol, feed[0].AuthorID)
			assert.False(t, feed[0].ViewerLiked)
			assert.True(t, feed[1].ViewerLiked)
			assert.Equal(t, int64(1), feed[1].LikeCount)
			assert.Equal(t, "https://cdn.example.com/Sunset/1.jpg", feed[1].ThumbnailURL)
		})
	}
}

func TestFeedValidation(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	_, err := e.feed.GetFeed(e.ctx, alice, 0, 0)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
	_, err = e.feed.GetFeed(e.ctx, alice, 10, -1)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
	_, err = e.feed.GetFeed(e.ctx, 999, 10, 0)
	assert.ErrorIs(t, err, errorx.ErrNotFound)

	feed, err := e.feed.GetFeed(e.ctx, alice, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestFeedPaginationIsStable(t *testing.T) {
	e := newEnv(t, 0)
	viewer := e.user("viewer")
	authors := []uint{viewer, e.user("bob"), e.user("carol")}
	e.follow(viewer, authors[1])
	e.follow(viewer, authors[2])

	for i := 0; i < 23; i++ {
		e.post(authors[i%len(authors)], fmt.Sprintf("p%d", i))
	}

	full, err := e.feed.GetFeed(e.ctx, viewer, 100, 0)
	require.NoError(t, err)
	require.Len(t, full, 23)

	var paged []uint
	for offset := 0; ; offset += 5 {
		page, err := e.feed.GetFeed(e.ctx, viewer, 5, offset)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		paged = append(paged, postIDs(page)...)
	}
	assert.Equal(t, postIDs(full), paged)

	var cursored []uint
	var cursor *models.FeedCursor
	for {
		page, next, err := e.feed.GetFeedAfter(e.ctx, viewer, cursor, 4)
		require.NoError(t, err)
		cursored = append(cursored, postIDs(page)...)
		if next == nil {
			break
		}
		cursor = next
	}
	assert.Equal(t, postIDs(full), cursored)
}

func TestFeedCursorSurvivesNewPosts(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")
	for i := 0; i < 6; i++ {
		e.post(alice, fmt.Sprintf("p%d", i))
	}

	first, next, err := e.feed.GetFeedAfter(e.ctx, alice, nil, 3)
	require.NoError(t, err)
	require.NotNil(t, next)

	e.post(alice, "newer")

	second, next, err := e.feed.GetFeedAfter(e.ctx, alice, next, 3)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Len(t, second, 3)
	assert.NotContains(t, postIDs(second), postIDs(first)[2])
}

func TestWriteTimeFeedFallsBackPastPrunedEntries(t *testing.T) {
	e := newEnv(t, 3)
	alice, bob := e.user("alice"), e.user("bob")
	e.follow(alice, bob)

	var posts []uint
	for i := 0; i < 6; i++ {
		posts = append(posts, e.post(bob, fmt.Sprintf("p%d", i)))
	}

	feed, err := e.feed.GetFeed(e.ctx, alice, 10, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 6)

	state, found, err := e.store.Repos().Timelines.GetState(e.ctx, alice)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, state.Pruned())
	assert.Equal(t, posts[2], state.HorizonPostID)
	assert.Equal(t, int64(3), e.count(&models.TimelineEntry{}, "owner_id = ?", alice))

	page, err := e.feed.GetFeed(e.ctx, alice, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint{posts[4], posts[3]}, postIDs(page))

	page, err = e.feed.GetFeed(e.ctx, alice, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{posts[3], posts[2]}, postIDs(page))
}

func TestPruneAll(t *testing.T) {
	e := newEnv(t, 2)
	alice, bob := e.user("alice"), e.user("bob")
	e.follow(alice, bob)
	_, err := e.feed.GetFeed(e.ctx, alice, 10, 0)
	require.NoError(t, err)

	var posts []uint
	for i := 0; i < 5; i++ {
		posts = append(posts, e.post(bob, fmt.Sprintf("p%d", i)))
	}
	require.Equal(t, int64(5), e.count(&models.TimelineEntry{}, "owner_id = ?", alice))
	// bob never read his feed, so his pushed entries are untrusted.
	require.Equal(t, int64(5), e.count(&models.TimelineEntry{}, "owner_id = ?", bob))

	pruned, err := e.timelines.PruneAll(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	assert.Equal(t, int64(2), e.count(&models.TimelineEntry{}, "owner_id = ?", alice))
	assert.Zero(t, e.count(&models.TimelineEntry{}, "owner_id = ?", bob))

	state, found, err := e.store.Repos().Timelines.GetState(e.ctx, alice)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, posts[2], state.HorizonPostID)

	feed, err := e.feed.GetFeed(e.ctx, bob, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{posts[4], posts[3], posts[2], posts[1], posts[0]}, postIDs(feed))
}

// TestFeedStrategiesAgree drives a random workload with write-time fan-out
// enabled and a tiny cap, then checks that both strategies return the same
// pages for every viewer.
func TestFeedStrategiesAgree(t *testing.T) {
	e := newEnv(t, 4)
	read := NewReadTimeFeed(e.store)
	write := NewWriteTimeFeed(e.store, e.timelines)
	rng := rand.New(rand.NewSource(7))

	var users []uint
	for i := 0; i < 6; i++ {
		users = append(users, e.user(fmt.Sprintf("user%d", i)))
	}
	pick := func() uint { return users[rng.Intn(len(users))] }
	postsBy := map[uint][]uint{}

	compare := func(step int) {
		for _, viewer := range users {
			for _, page := range [][2]int{{3, 0}, {3, 3}, {2, 5}, {10, 0}, {4, 2}} {
				want, err := read.GetFeed(e.ctx, viewer, page[0], page[1])
				require.NoError(t, err)
				got, err := write.GetFeed(e.ctx, viewer, page[0], page[1])
				require.NoError(t, err)
				require.Equal(t, want, got, "step %d viewer %d limit %d offset %d", step, viewer, page[0], page[1])
			}
		}
	}

	for step := 0; step < 200; step++ {
		a, b := pick(), pick()
		switch op := rng.Intn(10); {
		case op < 3:
			postsBy[a] = append(postsBy[a], e.post(a, fmt.Sprintf("s%d", step)))
		case op < 5:
			if a != b {
				e.follow(a, b)
			}
		case op == 5:
			require.NoError(t, e.engagement.Unfollow(e.ctx, a, b))
		case op == 6:
			if ps := postsBy[a]; len(ps) > 0 {
				require.NoError(t, e.engagement.ArchivePost(e.ctx, a, ps[rng.Intn(len(ps))]))
			}
		case op == 7:
			if ps := postsBy[a]; len(ps) > 0 {
				i := rng.Intn(len(ps))
				require.NoError(t, e.engagement.DeletePost(e.ctx, a, ps[i]))
				postsBy[a] = append(ps[:i], ps[i+1:]...)
			}
		case op == 8:
			if ps := postsBy[b]; len(ps) > 0 {
				e.like(a, ps[rng.Intn(len(ps))])
			}
		default:
			if rng.Intn(2) == 0 {
				_, err := e.timelines.PruneAll(e.ctx)
				require.NoError(t, err)
			} else {
				_, err := write.GetFeed(e.ctx, a, 3, 0)
				require.NoError(t, err)
			}
		}
		if step%25 == 24 {
			compare(step)
		}
	}
	compare(200)
}

func TestExplorePopular(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.user("owner")
	var fans []uint
	for i := 0; i < 5; i++ {
		fans = append(fans, e.user(fmt.Sprintf("fan%d", i)))
	}

	old := e.post(owner, "old")
	for _, f := range fans {
		e.like(f, old)
	}
	e.clock.Advance(10 * 24 * time.Hour)

	p1 := e.post(owner, "p1")
	p2 := e.post(owner, "p2")
	p3 := e.post(owner, "p3")
	archived := e.post(owner, "archived")
	for _, f := range fans {
		e.like(f, p1)
		e.like(f, archived)
	}
	for _, f := range fans[:3] {
		e.like(f, p2)
		e.like(f, p3)
	}
	for i := 0; i < 4; i++ {
		e.comment(fans[i], p2, "wow")
	}
	e.comment(fans[0], p3, "ok")
	require.NoError(t, e.engagement.ArchivePost(e.ctx, owner, archived))

	ranked, err := e.explore.ExplorePopular(e.ctx, fans[0], 7, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1, p2, p3}, postIDs(ranked))
	assert.True(t, ranked[0].ViewerLiked)
	assert.Equal(t, int64(4), ranked[1].CommentCount)

	// old and p1 tie on likes and comments; the lower id wins.
	top, err := e.explore.ExplorePopular(e.ctx, 0, 30, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{old, p1}, postIDs(top))
	assert.False(t, top[0].ViewerLiked)

	_, err = e.explore.ExplorePopular(e.ctx, 0, 0, 10)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
	_, err = e.explore.ExplorePopular(e.ctx, 0, 7, 0)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
}

func TestExploreTieBreaksByID(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.user("owner")
	a := e.post(owner, "a")
	b := e.post(owner, "b")
	c := e.post(owner, "c")

	ranked, err := e.explore.ExplorePopular(e.ctx, 0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{a, b, c}, postIDs(ranked))
}

func TestExploreAcceptsHugeWindows(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")
	p := e.post(alice, "sunset")

	for _, days := range []int{200000, math.MaxInt32, math.MaxInt} {
		ranked, err := e.explore.ExplorePopular(e.ctx, 0, days, 10)
		require.NoError(t, err)
		assert.Equal(t, []uint{p}, postIDs(ranked), "window of %d days", days)
	}
}
