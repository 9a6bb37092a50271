package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/middleware"
	"github.com/cppla/cohort/utils"
)

// PostController serves the read side of the feed: post pages, comment pages and reply lists.
type PostController struct {
	store *content.Store
}

// NewPostController creates a new PostController instance.
func NewPostController(store *content.Store) *PostController {
	return &PostController{store: store}
}

// ListPosts returns one page of live posts, pinned first. user_id narrows to one author.
func (p *PostController) ListPosts(ctx *gin.Context) {
	opts := parsePagination(ctx.Query("limit"), ctx.Query("offset"))
	opts.Category = strings.TrimSpace(ctx.Query("category"))

	var userID uint
	if raw := strings.TrimSpace(ctx.Query("user_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			utils.ErrorFrom(ctx, errs.Validation("user_id", "must be a positive number"))
			return
		}
		userID = uint(id)
	}

	cacheKey := utils.CacheKeyPostList(opts.Category, userID, opts.Limit, opts.Offset)
	if serveCached(ctx, cacheKey) {
		return
	}

	container := ""
	if userID != 0 {
		container = strconv.FormatUint(uint64(userID), 10)
	}
	page, err := p.store.ListForContainer(ctx.Request.Context(), content.KindPost, container, opts)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	successCached(ctx, cacheKey, page)
}

// ListComments returns one page of top-level comments under a post, newest first.
func (p *PostController) ListComments(ctx *gin.Context) {
	postID := ctx.Param("id")
	opts := parsePagination(ctx.Query("limit"), ctx.Query("offset"))

	cacheKey := utils.CacheKeyComments(postID, opts.Limit, opts.Offset)
	if serveCached(ctx, cacheKey) {
		return
	}

	page, err := p.store.ListForContainer(ctx.Request.Context(), content.KindComment, postID, opts)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	successCached(ctx, cacheKey, page)
}

// ListReplies returns every live reply to a comment.
func (p *PostController) ListReplies(ctx *gin.Context) {
	commentID := ctx.Param("id")

	cacheKey := utils.CacheKeyReplies(commentID)
	if serveCached(ctx, cacheKey) {
		return
	}

	replies, err := p.store.ListReplies(ctx.Request.Context(), commentID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	successCached(ctx, cacheKey, replies)
}

// parsePagination reads limit/offset, falling back to defaults on anything unparsable.
func parsePagination(limitStr, offsetStr string) content.ListOptions {
	opts := content.ListOptions{Limit: content.DefaultPageSize}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= content.MaxPageSize {
		opts.Limit = l
	}
	if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
		opts.Offset = o
	}
	return opts
}

func getUserID(ctx *gin.Context) (uint, bool) {
	id := middleware.CurrentUserID(ctx)
	return id, id != 0
}

// requireUser answers 401 when the request carries no identity.
func requireUser(ctx *gin.Context) (uint, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
	}
	return userID, ok
}

// serveCached answers straight from the response cache when key is present.
func serveCached(ctx *gin.Context, key string) bool {
	b, ok := utils.CacheGetBytes(key)
	if !ok {
		return false
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
	return true
}

// successCached writes a success envelope and stores its bytes under key.
func successCached(ctx *gin.Context, key string, data interface{}) {
	b, err := json.Marshal(utils.JSONResponse{Code: 0, Message: "success", Data: data})
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.CacheSetBytes(key, b, 0)
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
}
