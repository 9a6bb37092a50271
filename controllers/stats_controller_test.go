package controllers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCountViewsAndContent(t *testing.T) {
	h := newHarness(t)
	post := h.createPost(h.alice, "popular")
	h.createComment(h.bob, post.ID, "", "first")
	gone := h.createComment(h.bob, post.ID, "", "second")
	decode(t, h.do(http.MethodPost, "/api/v1/content/comment/"+gone.ID+"/delete", nil, &h.bob), http.StatusOK, nil)

	for i := 0; i < 3; i++ {
		decode(t, h.do(http.MethodGet, "/api/v1/content/post/"+post.ID, nil, nil), http.StatusOK, nil)
	}
	// misses and listings are not views
	decode(t, h.do(http.MethodGet, "/api/v1/content/post/missing", nil, nil), http.StatusNotFound, nil)
	decode(t, h.do(http.MethodGet, "/api/v1/posts", nil, nil), http.StatusOK, nil)

	var ps struct {
		Views    int64 `json:"views"`
		Comments int64 `json:"comments_count"`
	}
	decode(t, h.do(http.MethodGet, "/api/v1/stats/posts/"+post.ID, nil, nil), http.StatusOK, &ps)
	assert.EqualValues(t, 3, ps.Views)
	assert.EqualValues(t, 1, ps.Comments)

	var site struct {
		Users    int64 `json:"user_count"`
		Posts    int64 `json:"post_count"`
		Comments int64 `json:"comment_count"`
		Daily    int64 `json:"daily_view_count"`
	}
	decode(t, h.do(http.MethodGet, "/api/v1/stats", nil, nil), http.StatusOK, &site)
	assert.EqualValues(t, 3, site.Users)
	assert.EqualValues(t, 1, site.Posts)
	assert.EqualValues(t, 1, site.Comments)
	assert.EqualValues(t, 3, site.Daily)

	decode(t, h.do(http.MethodGet, "/api/v1/stats/posts/missing", nil, nil), http.StatusNotFound, nil)
}

func TestPlatformEndpoints(t *testing.T) {
	h := newHarness(t)

	var limits struct {
		MaxImageBytes int64    `json:"maxImageBytes"`
		MaxVideoBytes int64    `json:"maxVideoBytes"`
		MaxFiles      int      `json:"maxFiles"`
		Allowed       []string `json:"allowedMimeTypes"`
	}
	decode(t, h.do(http.MethodGet, "/api/v1/config/uploads", nil, nil), http.StatusOK, &limits)
	assert.Positive(t, limits.MaxImageBytes)
	assert.Greater(t, limits.MaxVideoBytes, limits.MaxImageBytes)
	assert.Contains(t, limits.Allowed, "image/png")

	decode(t, h.do(http.MethodGet, "/health", nil, nil), http.StatusOK, nil)

	env := decode(t, h.do(http.MethodGet, "/api/v1/nowhere", nil, nil), http.StatusNotFound, nil)
	assert.Equal(t, 40400, env.Code)

	w := h.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `cohort_http_requests_total{method="GET",route="/health",status="2xx"} 1`), body)
	assert.Contains(t, body, `route="unmatched",status="4xx"`)
}
