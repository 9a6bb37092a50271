package controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/utils"
)

func TestContentLifecycle(t *testing.T) {
	h := newHarness(t)

	post := h.createPost(h.alice, "first week notes")
	assert.Equal(t, content.KindPost, post.Kind)
	assert.Equal(t, h.alice.ID, post.AuthorID)

	path := "/api/v1/content/post/" + post.ID
	var got content.Entity
	decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusOK, &got)
	assert.Equal(t, "first week notes", got.Body)
	assert.True(t, h.redis.Exists(utils.CacheKeyContent("post", post.ID)))

	// someone else cannot edit
	env := decode(t, h.do(http.MethodPost, path, map[string]string{"body": "hijacked"}, &h.bob), http.StatusForbidden, nil)
	assert.Equal(t, utils.CodeForbidden, env.Code)

	var saved content.SaveResult
	decode(t, h.do(http.MethodPost, path, map[string]string{"body": "edited notes"}, &h.alice), http.StatusOK, &saved)
	assert.Equal(t, "edited notes", saved.Entity.Body)
	assert.False(t, h.redis.Exists(utils.CacheKeyContent("post", post.ID)))

	decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusOK, &got)
	assert.Equal(t, "edited notes", got.Body)

	var deleted content.Entity
	decode(t, h.do(http.MethodPost, path+"/delete", nil, &h.alice), http.StatusOK, &deleted)
	require.NotNil(t, deleted.DeletedAt())

	// deleting again answers the same tombstone
	var again content.Entity
	decode(t, h.do(http.MethodPost, path+"/delete", nil, &h.alice), http.StatusOK, &again)
	assert.True(t, deleted.DeletedAt().Equal(*again.DeletedAt()))

	env = decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusNotFound, nil)
	assert.Equal(t, utils.CodeNotFound, env.Code)

	// edits on a tombstone conflict
	decode(t, h.do(http.MethodPost, path, map[string]string{"body": "too late"}, &h.alice), http.StatusConflict, nil)
}

func TestContentWritesRequireAuth(t *testing.T) {
	h := newHarness(t)

	env := decode(t, h.do(http.MethodPost, "/api/v1/content", map[string]string{"kind": "post", "body": "x"}, nil), http.StatusUnauthorized, nil)
	assert.Equal(t, 40101, env.Code)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"unknown kind", map[string]interface{}{"kind": "poll", "body": "x"}, http.StatusBadRequest},
		{"empty body", map[string]interface{}{"kind": "post", "body": ""}, http.StatusBadRequest},
		{"bad category", map[string]interface{}{"kind": "post", "body": "x", "category": "memes"}, http.StatusBadRequest},
		{"comment on missing post", map[string]interface{}{"kind": "comment", "postId": "nope", "body": "x"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decode(t, h.do(http.MethodPost, "/api/v1/content", tc.body, &h.alice), tc.code, nil)
		})
	}
}

func TestCreatePostWithAttachments(t *testing.T) {
	h := newHarness(t)

	a := h.uploadPNG(h.alice, "a.png")
	b := h.uploadPNG(h.alice, "b.png")

	var res content.SaveResult
	w := h.do(http.MethodPost, "/api/v1/content", map[string]interface{}{
		"kind": "post",
		"body": "with pictures",
		"attachments": map[string]interface{}{
			"newRefs": []interface{}{a, b},
		},
	}, &h.alice)
	decode(t, w, http.StatusOK, &res)
	require.Len(t, res.Attachments, 2)
	assert.Equal(t, a.ID, res.Attachments[0].ID)
	assert.Equal(t, 1, res.Attachments[1].Position)

	var listed []content.Attachment
	decode(t, h.do(http.MethodGet, "/api/v1/attachments/post/"+res.Entity.ID, nil, nil), http.StatusOK, &listed)
	assert.Len(t, listed, 2)
}

func TestCreateRollsBackWhenAttachmentsFail(t *testing.T) {
	h := newHarness(t)

	// bob's upload cannot be attached by alice
	foreign := h.uploadPNG(h.bob, "b.png")
	w := h.do(http.MethodPost, "/api/v1/content", map[string]interface{}{
		"kind":        "post",
		"body":        "should not exist",
		"attachments": map[string]interface{}{"newRefs": []interface{}{foreign}},
	}, &h.alice)
	decode(t, w, http.StatusBadRequest, nil)

	var page content.Page
	decode(t, h.do(http.MethodGet, "/api/v1/posts", nil, nil), http.StatusOK, &page)
	assert.Zero(t, page.Total)
}

func TestPinning(t *testing.T) {
	h := newHarness(t)
	post := h.createPost(h.alice, "announcement")
	path := "/api/v1/content/post/" + post.ID + "/pin"

	decode(t, h.do(http.MethodPost, path, map[string]bool{"pinned": true}, &h.alice), http.StatusForbidden, nil)
	decode(t, h.do(http.MethodPost, path, map[string]interface{}{}, &h.root), http.StatusBadRequest, nil)

	var pinned content.Entity
	decode(t, h.do(http.MethodPost, path, map[string]bool{"pinned": true}, &h.root), http.StatusOK, &pinned)
	assert.True(t, pinned.IsPinned)

	comment := h.createComment(h.bob, post.ID, "", "nice")
	decode(t, h.do(http.MethodPost, "/api/v1/content/comment/"+comment.ID+"/pin", map[string]bool{"pinned": true}, &h.root), http.StatusBadRequest, nil)
}
