package controllers_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/profiles"
	"github.com/cppla/cohort/utils"
)

func TestOwnProfileReadAndPatch(t *testing.T) {
	h := newHarness(t)

	decode(t, h.do(http.MethodGet, "/api/v1/profile", nil, nil), http.StatusUnauthorized, nil)

	var p models.UserProfile
	decode(t, h.do(http.MethodGet, "/api/v1/profile", nil, &h.alice), http.StatusOK, &p)
	assert.Equal(t, h.alice.ID, p.UserID)
	assert.True(t, p.IsPublic)

	w := h.do(http.MethodPatch, "/api/v1/profile", map[string]interface{}{
		"bio":        "Gopher",
		"skills":     []string{"go", "redis"},
		"websiteUrl": "https://alice.dev",
	}, &h.alice)
	decode(t, w, http.StatusOK, &p)
	assert.Equal(t, "Gopher", p.Bio)
	assert.Equal(t, []string{"go", "redis"}, p.Skills)
	assert.Equal(t, "https://alice.dev", p.WebsiteURL)

	env := decode(t, h.do(http.MethodPatch, "/api/v1/profile", map[string]interface{}{"githubUrl": "nope"}, &h.alice), http.StatusBadRequest, nil)
	assert.Equal(t, utils.CodeValidation, env.Code)
}

func TestPrivateProfileHiddenFromOthers(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/users/" + strconv.FormatUint(uint64(h.alice.ID), 10) + "/profile"

	var pub profiles.PublicProfile
	decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusOK, &pub)
	assert.Equal(t, "alice", pub.User.Username)

	decode(t, h.do(http.MethodPatch, "/api/v1/profile", map[string]interface{}{"isPublic": false}, &h.alice), http.StatusOK, nil)

	env := decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusNotFound, nil)
	assert.Equal(t, utils.CodeNotFound, env.Code)
	decode(t, h.do(http.MethodGet, path, nil, &h.bob), http.StatusNotFound, nil)
	decode(t, h.do(http.MethodGet, path, nil, &h.alice), http.StatusOK, &pub)
	require.NotNil(t, pub.Profile)
	assert.False(t, pub.Profile.IsPublic)

	decode(t, h.do(http.MethodGet, "/api/v1/users/abc/profile", nil, nil), http.StatusBadRequest, nil)
	decode(t, h.do(http.MethodGet, "/api/v1/users/9999/profile", nil, nil), http.StatusNotFound, nil)
}

func TestPortfolioRoutes(t *testing.T) {
	h := newHarness(t)

	var item models.PortfolioItem
	w := h.do(http.MethodPost, "/api/v1/portfolio", map[string]interface{}{
		"title":        "Cohort",
		"url":          "https://example.com/cohort",
		"technologies": []string{"go"},
	}, &h.alice)
	decode(t, w, http.StatusOK, &item)
	assert.Equal(t, h.alice.ID, item.UserID)

	env := decode(t, h.do(http.MethodPut, "/api/v1/portfolio/"+item.ID, map[string]interface{}{"title": "x"}, &h.bob), http.StatusForbidden, nil)
	assert.Equal(t, utils.CodeForbidden, env.Code)

	decode(t, h.do(http.MethodPut, "/api/v1/portfolio/"+item.ID, map[string]interface{}{"title": "Cohort 2"}, &h.alice), http.StatusOK, &item)
	assert.Equal(t, "Cohort 2", item.Title)

	var items []models.PortfolioItem
	path := "/api/v1/users/" + strconv.FormatUint(uint64(h.alice.ID), 10) + "/portfolio"
	decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusOK, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "Cohort 2", items[0].Title)

	decode(t, h.do(http.MethodDelete, "/api/v1/portfolio/"+item.ID, nil, &h.bob), http.StatusForbidden, nil)
	decode(t, h.do(http.MethodDelete, "/api/v1/portfolio/"+item.ID, nil, &h.alice), http.StatusOK, nil)
	decode(t, h.do(http.MethodGet, path, nil, nil), http.StatusOK, &items)
	assert.Empty(t, items)

	decode(t, h.do(http.MethodPost, "/api/v1/portfolio", map[string]interface{}{"title": ""}, &h.alice), http.StatusBadRequest, nil)
}

func TestMemberDirectory(t *testing.T) {
	h := newHarness(t)

	decode(t, h.do(http.MethodGet, "/api/v1/members", nil, nil), http.StatusUnauthorized, nil)

	var page profiles.MemberPage
	decode(t, h.do(http.MethodGet, "/api/v1/members", nil, &h.alice), http.StatusOK, &page)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Members, 3)

	decode(t, h.do(http.MethodGet, "/api/v1/members?search=BO", nil, &h.alice), http.StatusOK, &page)
	require.Len(t, page.Members, 1)
	assert.Equal(t, h.bob.ID, page.Members[0].ID)

	decode(t, h.do(http.MethodGet, "/api/v1/members?limit=x", nil, &h.alice), http.StatusBadRequest, nil)
	decode(t, h.do(http.MethodGet, "/api/v1/members?limit=500", nil, &h.alice), http.StatusBadRequest, nil)
}
