package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/utils"
)

// StatsController provides community statistics such as counts and daily page views.
type StatsController struct {
	db    *gorm.DB
	store *content.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, store *content.Store) *StatsController {
	return &StatsController{db: db, store: store}
}

// GetStats returns aggregate statistics for the community.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var postCount int64
	var commentCount int64
	var dailyViews int64

	db := s.db.WithContext(ctx.Request.Context())
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	if err := db.Model(&models.Post{}).Where("deleted_at IS NULL").Count(&postCount).Error; err != nil {
		postCount = 0
	}

	if err := db.Model(&models.Comment{}).Where("deleted_at IS NULL").Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	// Sum of today's content views across all paths
	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&dailyViews).Error; err != nil {
		dailyViews = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":       userCount,
		"post_count":       postCount,
		"comment_count":    commentCount,
		"daily_view_count": dailyViews,
	})
}

// GetPostStats returns the view count and live comment count of a post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	id := ctx.Param("id")
	if _, err := s.store.Get(ctx.Request.Context(), content.KindPost, id); err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}

	var views int64
	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.PageView{}).
		Where("path = ?", "/api/v1/content/post/"+id).
		Select("COALESCE(SUM(count),0)").
		Scan(&views).Error; err != nil {
		views = 0
	}

	comments, err := s.store.CountComments(ctx.Request.Context(), id)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"views":          views,
		"comments_count": comments,
	})
}
