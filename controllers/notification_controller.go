package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/utils"
)

// NotificationController exposes the caller's in-app notifications.
type NotificationController struct {
	svc *notify.Service
}

func NewNotificationController(svc *notify.Service) *NotificationController {
	return &NotificationController{svc: svc}
}

// List returns one page of notifications, newest first.
func (n *NotificationController) List(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	items, total, err := n.svc.List(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": items, "total": total})
}

func (n *NotificationController) UnreadCount(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	count, err := n.svc.UnreadCount(ctx.Request.Context(), userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"count": count})
}

// MarkRead marks one notification read. Someone else's notification answers 404.
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	item, err := n.svc.MarkRead(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	changed, err := n.svc.MarkAllRead(ctx.Request.Context(), userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"updated": changed})
}
