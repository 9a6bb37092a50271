package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
)

func TestStatusErrorMapping(t *testing.T) {
	assert.True(t, errs.IsValidation(statusError(http.StatusBadRequest, "body: is required")))
	assert.True(t, errs.IsForbidden(statusError(http.StatusForbidden, "not allowed to edit this post")))
	assert.True(t, errs.IsConflict(statusError(http.StatusConflict, "cannot edit a deleted comment")))
	assert.True(t, errs.IsTransport(statusError(http.StatusBadGateway, "file storage unavailable")))

	nf := statusError(http.StatusNotFound, "post p1 not found")
	assert.True(t, errs.IsNotFound(nf))
	assert.Equal(t, "post p1 not found", nf.Error())

	forbidden := statusError(http.StatusForbidden, "not allowed to edit this post")
	assert.Equal(t, "not allowed to edit this post", forbidden.Error())
}

func TestGetContentUsesCache(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := New(srv.URL, WithCache(NewQueryCache(8, time.Minute)))
	ctx := context.Background()

	body := "hello"
	res, err := c.CreateContent(ctx, SaveRequest{Kind: content.KindPost, Body: &body})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := c.GetContent(ctx, content.KindPost, res.Entity.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Body)
	}
	assert.Equal(t, 1, api.reads)

	_, err = c.GetContent(ctx, content.KindPost, "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestServerDownIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := New(srv.URL).GetContent(context.Background(), content.KindPost, "p1")
	assert.True(t, errs.IsTransport(err))
}
