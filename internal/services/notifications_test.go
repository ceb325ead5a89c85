package services

import (
	"testing"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueSuppressesSelf(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")

	err := e.store.Transaction(e.ctx, func(tx *repositories.Repos) error {
		created, err := e.notifications.Enqueue(e.ctx, tx, Event{Recipient: alice, Actor: alice, Kind: models.NotificationFollow})
		assert.False(t, created)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, e.count(&models.Notification{}, ""))
}

func TestEnqueueTimestampsAreMonotonic(t *testing.T) {
	e := newEnv(t, 0)
	alice := e.user("alice")
	e.clock.Freeze()

	var fans []uint
	for _, name := range []string{"bob", "carol", "dave"} {
		fans = append(fans, e.user(name))
	}
	for _, f := range fans {
		e.follow(f, alice)
	}

	unread, err := e.notifications.ListUnread(e.ctx, alice)
	require.NoError(t, err)
	require.Len(t, unread, 3)
	for i := 1; i < len(unread); i++ {
		assert.True(t, unread[i].CreatedAt.After(unread[i-1].CreatedAt))
	}
	assert.Equal(t, fans[0], unread[0].ActorID)
	assert.Equal(t, "bob", unread[0].ActorInfo.Username)
}

func TestEnqueueRollsBackWithMutation(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")

	err := e.store.Transaction(e.ctx, func(tx *repositories.Repos) error {
		if _, err := e.notifications.Enqueue(e.ctx, tx, Event{Recipient: alice, Actor: bob, Kind: models.NotificationFollow}); err != nil {
			return err
		}
		return errorx.New(errorx.Internal, "abort")
	})
	require.Error(t, err)
	assert.Zero(t, e.count(&models.Notification{}, ""))
}

func TestMarkRead(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob, carol := e.user("alice"), e.user("bob"), e.user("carol")
	post := e.post(alice, "pic")
	e.like(bob, post)
	e.like(carol, post)
	e.follow(alice, bob)

	aliceUnread, err := e.notifications.ListUnread(e.ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceUnread, 2)
	bobUnread, err := e.notifications.ListUnread(e.ctx, bob)
	require.NoError(t, err)
	require.Len(t, bobUnread, 1)

	// Foreign ids are ignored.
	updated, err := e.notifications.MarkRead(e.ctx, alice, []uint{aliceUnread[0].ID, bobUnread[0].ID, aliceUnread[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	count, err := e.notifications.UnreadCount(e.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = e.notifications.UnreadCount(e.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := e.notifications.ListUnread(e.ctx, alice)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, aliceUnread[1].ID, remaining[0].ID)

	updated, err = e.notifications.MarkAllRead(e.ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	all, total, err := e.notifications.List(e.ctx, alice, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, n := range all {
		assert.True(t, n.IsRead)
	}
	assert.Equal(t, aliceUnread[1].ID, all[0].ID)

	_, _, err = e.notifications.List(e.ctx, alice, 0, 10)
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
}

func TestGroupedNotifications(t *testing.T) {
	e := newEnv(t, 0)
	alice, bob := e.user("alice"), e.user("bob")
	e.follow(bob, alice)

	groups, err := e.notifications.Grouped(e.ctx, alice)
	require.NoError(t, err)
	assert.Len(t, groups["today"], 1)
	assert.Empty(t, groups["yesterday"])
	assert.Empty(t, groups["this_week"])
	assert.Empty(t, groups["older"])
}
