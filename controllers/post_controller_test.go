package controllers_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/utils"
)

func TestListPostsIsCachedAndInvalidated(t *testing.T) {
	h := newHarness(t)
	h.createPost(h.alice, "one")

	var page content.Page
	decode(t, h.do(http.MethodGet, "/api/v1/posts", nil, nil), http.StatusOK, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.True(t, h.redis.Exists(utils.CacheKeyPostList("", 0, content.DefaultPageSize, 0)))

	h.createPost(h.bob, "two")
	decode(t, h.do(http.MethodGet, "/api/v1/posts", nil, nil), http.StatusOK, &page)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "two", page.Items[0].Body)

	uid := strconv.FormatUint(uint64(h.alice.ID), 10)
	decode(t, h.do(http.MethodGet, "/api/v1/posts?user_id="+uid+"&limit=5", nil, nil), http.StatusOK, &page)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)

	decode(t, h.do(http.MethodGet, "/api/v1/posts?user_id=abc", nil, nil), http.StatusBadRequest, nil)
}

func TestCommentsAndReplies(t *testing.T) {
	h := newHarness(t)
	post := h.createPost(h.alice, "question")
	top := h.createComment(h.bob, post.ID, "", "answer")

	var page content.Page
	decode(t, h.do(http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusOK, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, top.ID, page.Items[0].ID)

	var replies []content.Entity
	decode(t, h.do(http.MethodGet, "/api/v1/comments/"+top.ID+"/replies", nil, nil), http.StatusOK, &replies)
	assert.Empty(t, replies)

	reply := h.createComment(h.alice, post.ID, top.ID, "thanks")
	decode(t, h.do(http.MethodGet, "/api/v1/comments/"+top.ID+"/replies", nil, nil), http.StatusOK, &replies)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	// replies stay out of the top-level page
	decode(t, h.do(http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusOK, &page)
	assert.EqualValues(t, 1, page.Total)

	// once the post is gone its comment pages answer 404, even if they were cached
	decode(t, h.do(http.MethodPost, "/api/v1/content/post/"+post.ID+"/delete", nil, &h.alice), http.StatusOK, nil)
	decode(t, h.do(http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusNotFound, nil)
}
