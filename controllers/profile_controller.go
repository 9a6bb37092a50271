package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/profiles"
	"github.com/cppla/cohort/utils"
)

// ProfileController serves member profiles, portfolios and the member directory.
type ProfileController struct {
	svc *profiles.Service
}

func NewProfileController(svc *profiles.Service) *ProfileController {
	return &ProfileController{svc: svc}
}

func userIDParam(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorFrom(ctx, errs.Validation("id", "must be a user id"))
		return 0, false
	}
	return uint(id), true
}

func intQuery(ctx *gin.Context, name string) (int, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		utils.ErrorFrom(ctx, errs.Validation(name, "must be a number"))
		return 0, false
	}
	return n, true
}

// Members lists users, filtered by ?search= on the username.
func (p *ProfileController) Members(ctx *gin.Context) {
	limit, ok := intQuery(ctx, "limit")
	if !ok {
		return
	}
	offset, ok := intQuery(ctx, "offset")
	if !ok {
		return
	}
	page, err := p.svc.Members(ctx.Request.Context(), ctx.Query("search"), limit, offset)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, page)
}

func (p *ProfileController) Mine(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	profile, err := p.svc.GetOrCreate(ctx.Request.Context(), userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, profile)
}

func (p *ProfileController) UpdateMine(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var in profiles.ProfileInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return
	}
	profile, err := p.svc.Update(ctx.Request.Context(), userID, in)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, profile)
}

// Public shows a member's profile page. Private profiles are visible to their owner only.
func (p *ProfileController) Public(ctx *gin.Context) {
	userID, ok := userIDParam(ctx)
	if !ok {
		return
	}
	viewerID, _ := getUserID(ctx)
	out, err := p.svc.Public(ctx.Request.Context(), viewerID, userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, out)
}

func (p *ProfileController) Portfolio(ctx *gin.Context) {
	userID, ok := userIDParam(ctx)
	if !ok {
		return
	}
	items, err := p.svc.ListPortfolio(ctx.Request.Context(), userID)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

func bindPortfolioItem(ctx *gin.Context) (profiles.PortfolioInput, bool) {
	var in profiles.PortfolioInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return in, false
	}
	return in, true
}

func (p *ProfileController) CreateItem(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	in, ok := bindPortfolioItem(ctx)
	if !ok {
		return
	}
	item, err := p.svc.CreateItem(ctx.Request.Context(), userID, in)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

func (p *ProfileController) UpdateItem(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	in, ok := bindPortfolioItem(ctx)
	if !ok {
		return
	}
	item, err := p.svc.UpdateItem(ctx.Request.Context(), userID, ctx.Param("id"), in)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

func (p *ProfileController) DeleteItem(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	if err := p.svc.DeleteItem(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}
