package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/calendar"
	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/utils"
)

// EventController serves the community calendar.
type EventController struct {
	svc *calendar.Service
	now func() time.Time
}

func NewEventController(svc *calendar.Service) *EventController {
	return &EventController{svc: svc, now: time.Now}
}

func parseTimeParam(ctx *gin.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return time.Time{}, errs.Validation(name, "is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errs.Validation(name, "must be an RFC 3339 timestamp")
	}
	return t, nil
}

// List returns events starting between start and end (RFC 3339).
func (e *EventController) List(ctx *gin.Context) {
	start, err := parseTimeParam(ctx, "start")
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	end, err := parseTimeParam(ctx, "end")
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	events, err := e.svc.Range(ctx.Request.Context(), start, end)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, events)
}

func (e *EventController) Upcoming(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.ErrorFrom(ctx, errs.Validation("limit", "must be a number"))
			return
		}
		limit = n
	}
	events, err := e.svc.Upcoming(ctx.Request.Context(), limit)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, events)
}

// Month lays out one month as Sunday-first weeks. year and month default to the current
// month in tz (an IANA zone name, UTC when absent).
func (e *EventController) Month(ctx *gin.Context) {
	loc := time.UTC
	if tz := strings.TrimSpace(ctx.Query("tz")); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			utils.ErrorFrom(ctx, errs.Validation("tz", "unknown time zone %q", tz))
			return
		}
		loc = l
	}
	now := e.now().In(loc)
	year, month := now.Year(), int(now.Month())
	if raw := ctx.Query("year"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1970 || n > 9999 {
			utils.ErrorFrom(ctx, errs.Validation("year", "must be a four digit year"))
			return
		}
		year = n
	}
	if raw := ctx.Query("month"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.ErrorFrom(ctx, errs.Validation("month", "must be between 1 and 12"))
			return
		}
		month = n
	}
	grid, err := e.svc.Month(ctx.Request.Context(), year, time.Month(month), loc)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, grid)
}

func (e *EventController) Get(ctx *gin.Context) {
	ev, err := e.svc.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, ev)
}

func bindEvent(ctx *gin.Context) (calendar.EventInput, bool) {
	var in calendar.EventInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return in, false
	}
	return in, true
}

// Create adds an event. Admins only.
func (e *EventController) Create(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	in, ok := bindEvent(ctx)
	if !ok {
		return
	}
	ev, err := e.svc.Create(ctx.Request.Context(), userID, in)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, ev)
}

func (e *EventController) Update(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	in, ok := bindEvent(ctx)
	if !ok {
		return
	}
	ev, err := e.svc.Update(ctx.Request.Context(), userID, ctx.Param("id"), in)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, ev)
}

func (e *EventController) Delete(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	if err := e.svc.Delete(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}
