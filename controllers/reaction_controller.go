package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/utils"
)

// ReactionController toggles and reports likes on posts and comments.
type ReactionController struct {
	store *content.Store
}

func NewReactionController(store *content.Store) *ReactionController {
	return &ReactionController{store: store}
}

func targetFrom(ctx *gin.Context) (content.ParentRef, bool) {
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return content.ParentRef{}, false
	}
	return content.ParentRef{Kind: kind, ID: ctx.Param("id")}, true
}

// Toggle likes the target, or takes the like back when the caller already liked it.
func (r *ReactionController) Toggle(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	target, ok := targetFrom(ctx)
	if !ok {
		return
	}
	sum, err := r.store.ToggleReaction(ctx.Request.Context(), userID, target)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, sum)
}

// Summary reports the like count and, for signed-in callers, whether they liked it.
func (r *ReactionController) Summary(ctx *gin.Context) {
	target, ok := targetFrom(ctx)
	if !ok {
		return
	}
	viewer, _ := getUserID(ctx)
	sum, err := r.store.Reactions(ctx.Request.Context(), viewer, target)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, sum)
}
