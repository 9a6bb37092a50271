package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/utils"
)

// ContentController handles writes to posts and comments and their detail view.
type ContentController struct {
	svc *content.Service
}

// NewContentController creates a ContentController.
func NewContentController(svc *content.Service) *ContentController {
	return &ContentController{svc: svc}
}

type saveRequest struct {
	Kind        string                     `json:"kind"`
	Title       *string                    `json:"title"`
	Body        *string                    `json:"body"`
	Category    *string                    `json:"category"`
	PostID      string                     `json:"postId"`
	ParentID    string                     `json:"parentId"`
	Attachments *content.AttachmentChanges `json:"attachments"`
}

// Create writes a new post or comment. An attachments block is committed in the same transaction.
func (c *ContentController) Create(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req saveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return
	}
	kind, err := content.ParseKind(req.Kind)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}

	res, err := c.svc.Save(ctx.Request.Context(), content.SaveInput{
		ActorID:     userID,
		Kind:        kind,
		Title:       req.Title,
		Body:        req.Body,
		Category:    req.Category,
		PostID:      req.PostID,
		ParentID:    req.ParentID,
		Attachments: req.Attachments,
	})
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	invalidateEntity(res.Entity)
	utils.Success(ctx, res)
}

// Update edits the text fields of an entity the caller wrote, plus its attachments when given.
func (c *ContentController) Update(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	var req saveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return
	}

	res, err := c.svc.Save(ctx.Request.Context(), content.SaveInput{
		ActorID:     userID,
		Kind:        kind,
		ID:          ctx.Param("id"),
		Title:       req.Title,
		Body:        req.Body,
		Category:    req.Category,
		Attachments: req.Attachments,
	})
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	invalidateEntity(res.Entity)
	utils.Success(ctx, res)
}

// Delete soft-deletes an entity the caller wrote. Repeating it is harmless.
func (c *ContentController) Delete(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	e, err := c.svc.Store.SoftDelete(ctx.Request.Context(), kind, ctx.Param("id"), userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	invalidateEntity(e)
	if e.Kind == content.KindPost {
		// Comment pages of a deleted post now answer 404.
		utils.InvalidatePostComments(e.ID)
	}
	utils.Success(ctx, e)
}

// SetPinned pins or unpins a post. Admins only.
func (c *ContentController) SetPinned(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	if ctx.Param("kind") != string(content.KindPost) {
		utils.ErrorFrom(ctx, errs.Validation("kind", "only posts can be pinned"))
		return
	}
	var req struct {
		Pinned *bool `json:"pinned"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Pinned == nil {
		utils.ErrorFrom(ctx, errs.Validation("pinned", "is required"))
		return
	}
	e, err := c.svc.Store.SetPinned(ctx.Request.Context(), ctx.Param("id"), userID, *req.Pinned)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	invalidateEntity(e)
	utils.Success(ctx, e)
}

// Get returns one live post or comment.
func (c *ContentController) Get(ctx *gin.Context) {
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	id := ctx.Param("id")
	cacheKey := utils.CacheKeyContent(string(kind), id)
	if serveCached(ctx, cacheKey) {
		return
	}
	e, err := c.svc.Store.Get(ctx.Request.Context(), kind, id)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	successCached(ctx, cacheKey, e)
}

// invalidateEntity drops the cached views a write to e can stale.
func invalidateEntity(e content.Entity) {
	if e.Kind == content.KindPost {
		utils.InvalidatePostWrite(e.ID)
		return
	}
	utils.InvalidateCommentWrite(e.ID, e.PostID, e.ParentID)
}
