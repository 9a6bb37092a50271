package calendar

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/utils"
)

const (
	MaxTitleRunes       = 200
	MaxDescriptionRunes = 5000

	DefaultUpcoming = 10
	MaxUpcoming     = 50

	DefaultEventType = "live-session"
)

var EventTypes = []string{"live-session", "workshop", "meetup", "assignment-due"}

// Authorizer answers whether a user may manage events.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

type EventInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	EventLink   string     `json:"eventLink"`
	EventType   string     `json:"eventType"`
}

type Service struct {
	db    *gorm.DB
	authz Authorizer
	now   func() time.Time
	log   *zap.Logger
}

func NewService(db *gorm.DB, authz Authorizer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, authz: authz, now: time.Now, log: log}
}

func validType(t string) bool {
	for _, v := range EventTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (in EventInput) clean(requireType bool) (EventInput, error) {
	in.Title = utils.SanitizePlain(in.Title)
	if in.Title == "" {
		return in, errs.Validation("title", "is required")
	}
	if n := utf8.RuneCountInString(in.Title); n > MaxTitleRunes {
		return in, errs.Validation("title", "must be at most %d characters, got %d", MaxTitleRunes, n)
	}
	in.Description = strings.TrimSpace(utils.Sanitize(in.Description))
	if n := utf8.RuneCountInString(in.Description); n > MaxDescriptionRunes {
		return in, errs.Validation("description", "must be at most %d characters, got %d", MaxDescriptionRunes, n)
	}
	if in.StartTime.IsZero() {
		return in, errs.Validation("startTime", "is required")
	}
	in.StartTime = in.StartTime.UTC()
	if in.EndTime != nil {
		if in.EndTime.Before(in.StartTime) {
			return in, errs.Validation("endTime", "must not be before the start time")
		}
		end := in.EndTime.UTC()
		in.EndTime = &end
	}
	in.EventLink = strings.TrimSpace(in.EventLink)
	if in.EventLink != "" {
		u, err := url.Parse(in.EventLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return in, errs.Validation("eventLink", "must be an http or https URL")
		}
	}
	in.EventType = strings.TrimSpace(in.EventType)
	if in.EventType == "" && requireType {
		in.EventType = DefaultEventType
	}
	if in.EventType != "" && !validType(in.EventType) {
		return in, errs.Validation("eventType", "must be one of %s", strings.Join(EventTypes, ", "))
	}
	return in, nil
}

func (s *Service) requireAdmin(ctx context.Context, actorID uint, action string) error {
	if s.authz == nil {
		return errs.Forbidden(actorID, action)
	}
	ok, err := s.authz.IsAdmin(ctx, actorID)
	if err != nil {
		return errs.New(err, "failed to check admin capability for user %d", actorID)
	}
	if !ok {
		return errs.Forbidden(actorID, action)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actorID uint, in EventInput) (*models.Event, error) {
	if err := s.requireAdmin(ctx, actorID, "create events"); err != nil {
		return nil, err
	}
	in, err := in.clean(true)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ev := models.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		EventLink:   in.EventLink,
		EventType:   in.EventType,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&ev).Error; err != nil {
		return nil, errs.New(err, "failed to create event")
	}
	s.log.Info("event created", zap.String("event_id", ev.ID), zap.Uint("actor_id", actorID))
	return &ev, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := s.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("event", id)
	}
	if err != nil {
		return nil, errs.New(err, "failed to load event %s", id)
	}
	return &ev, nil
}

// Update replaces the editable fields of an event. An empty event type keeps the current one.
func (s *Service) Update(ctx context.Context, actorID uint, id string, in EventInput) (*models.Event, error) {
	if err := s.requireAdmin(ctx, actorID, "edit events"); err != nil {
		return nil, err
	}
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err = in.clean(false)
	if err != nil {
		return nil, err
	}
	if in.EventType == "" {
		in.EventType = ev.EventType
	}
	updates := map[string]interface{}{
		"title":       in.Title,
		"description": in.Description,
		"start_time":  in.StartTime,
		"end_time":    in.EndTime,
		"event_link":  in.EventLink,
		"event_type":  in.EventType,
		"updated_at":  s.now(),
	}
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, errs.New(err, "failed to update event %s", id)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, actorID uint, id string) error {
	if err := s.requireAdmin(ctx, actorID, "delete events"); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Event{})
	if res.Error != nil {
		return errs.New(res.Error, "failed to delete event %s", id)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("event", id)
	}
	s.log.Info("event deleted", zap.String("event_id", id), zap.Uint("actor_id", actorID))
	return nil
}

// Range lists events starting within [start, end], earliest first.
func (s *Service) Range(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	if start.IsZero() || end.IsZero() {
		return nil, errs.Validation("range", "start and end are required")
	}
	if end.Before(start) {
		return nil, errs.Validation("range", "end must not be before start")
	}
	var out []models.Event
	err := s.db.WithContext(ctx).Preload("User").
		Where("start_time >= ? AND start_time <= ?", start.UTC(), end.UTC()).
		Order("start_time ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, errs.New(err, "failed to list events")
	}
	return out, nil
}

// Upcoming lists events that have not started yet, soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = DefaultUpcoming
	}
	if limit > MaxUpcoming {
		return nil, errs.Validation("limit", "must be at most %d", MaxUpcoming)
	}
	var out []models.Event
	err := s.db.WithContext(ctx).Preload("User").
		Where("start_time >= ?", s.now().UTC()).
		Order("start_time ASC").Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errs.New(err, "failed to list upcoming events")
	}
	return out, nil
}

// Month loads the events visible on a month grid and lays them out.
func (s *Service) Month(ctx context.Context, year int, month time.Month, loc *time.Location) (Month, error) {
	if month < time.January || month > time.December {
		return Month{}, errs.Validation("month", "must be between 1 and 12")
	}
	if loc == nil {
		loc = time.UTC
	}
	start, end := GridBounds(year, month, loc)
	events, err := s.Range(ctx, start, end.Add(-time.Nanosecond))
	if err != nil {
		return Month{}, err
	}
	return MonthGrid(year, month, loc, events), nil
}
