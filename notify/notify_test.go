package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/testutil"
)

func newService(t *testing.T) *Service {
	svc := NewService(testutil.NewDB(t), nil, nil)
	clock := testutil.NewClock()
	svc.now = func() time.Time {
		clock.Advance(time.Second)
		return clock.Now()
	}
	return svc
}

func TestNotifyAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, 1, Message{Kind: KindPostReply, Title: "first", RelatedID: "p1", RelatedType: "post"}))
	require.NoError(t, svc.Notify(ctx, 1, Message{Kind: KindCommentReply, Title: "second"}))
	require.NoError(t, svc.Notify(ctx, 2, Message{Kind: KindPostReply, Title: "other user"}))

	items, total, err := svc.List(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Title)
	assert.Equal(t, "first", items[1].Title)
	assert.Equal(t, "p1", items[1].RelatedID)

	items, _, err = svc.List(ctx, 1, 1, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Title)
}

func TestMarkReadOwnOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Notify(ctx, 1, Message{Kind: KindPostReply, Title: "hi"}))
	items, _, _ := svc.List(ctx, 1, 10, 0)
	id := items[0].ID

	_, err := svc.MarkRead(ctx, 2, id)
	assert.True(t, errs.IsNotFound(err))

	n, err := svc.MarkRead(ctx, 1, id)
	require.NoError(t, err)
	assert.True(t, n.IsRead)
	assert.NotNil(t, n.ReadAt)

	unread, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestMarkAllRead(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, 5, Message{Kind: KindPostReply, Title: "x"}))
	}
	require.NoError(t, svc.Notify(ctx, 6, Message{Kind: KindPostReply, Title: "y"}))

	changed, err := svc.MarkAllRead(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	unread, _ := svc.UnreadCount(ctx, 6)
	assert.Equal(t, int64(1), unread)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short"))
	long := strings.Repeat("é", 150)
	got := Excerpt(long)
	assert.Equal(t, strings.Repeat("é", 100)+"...", got)
}
