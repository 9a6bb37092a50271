// Package notify stores in-app notifications for users.
package notify

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/utils"
)

// Notification kinds.
const (
	KindPostReply    = "post-reply"
	KindCommentReply = "comment-reply"
)

const excerptRunes = 100

// Message is what a notification says and which entity it points at.
type Message struct {
	Kind        string
	Title       string
	Content     string
	RelatedID   string
	RelatedType string
}

// Notifier delivers a message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uint, msg Message) error
}

type Service struct {
	db      *gorm.DB
	now     func() time.Time
	log     *zap.Logger
	metrics *utils.Metrics
}

func NewService(db *gorm.DB, log *zap.Logger, metrics *utils.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, now: time.Now, log: log, metrics: metrics}
}

// Notify persists the message for userID.
func (s *Service) Notify(ctx context.Context, userID uint, msg Message) error {
	n := models.Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        msg.Kind,
		Title:       msg.Title,
		Content:     Excerpt(msg.Content),
		RelatedID:   msg.RelatedID,
		RelatedType: msg.RelatedType,
		CreatedAt:   s.now(),
	}
	err := s.db.WithContext(ctx).Create(&n).Error
	if s.metrics != nil {
		result := "ok"
		if err != nil {
			result = "failed"
		}
		s.metrics.Notifications.WithLabelValues(result).Inc()
	}
	if err != nil {
		return errs.New(err, "failed to store notification for user %d", userID)
	}
	return nil
}

// List returns a page of the user's notifications, newest first, and the total count.
func (s *Service) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errs.New(err, "failed to count notifications")
	}
	items := []models.Notification{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, errs.New(err, "failed to list notifications")
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, errs.New(err, "failed to count unread notifications")
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. Other users' notifications are reported missing.
func (s *Service) MarkRead(ctx context.Context, userID uint, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("notification", id)
	}
	if err != nil {
		return nil, errs.New(err, "failed to load notification %s", id)
	}
	if n.IsRead {
		return &n, nil
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
	if err != nil {
		return nil, errs.New(err, "failed to mark notification %s read", id)
	}
	n.IsRead = true
	n.ReadAt = &now
	return &n, nil
}

// MarkAllRead marks every unread notification of the user read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		return 0, errs.New(res.Error, "failed to mark notifications read")
	}
	return res.RowsAffected, nil
}

// Excerpt shortens notification text to a preview.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s
	}
	return string([]rune(s)[:excerptRunes]) + "..."
}
