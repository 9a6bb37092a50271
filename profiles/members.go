package profiles

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
)

const (
	DefaultMemberPage = 50
	MaxMemberPage     = 100
)

type MemberPage struct {
	Members []Member `json:"members"`
	Total   int64    `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Members lists registered users, newest first. search matches a substring of the username,
// ignoring case.
func (s *Service) Members(ctx context.Context, search string, limit, offset int) (MemberPage, error) {
	if limit == 0 {
		limit = DefaultMemberPage
	}
	if limit < 0 || limit > MaxMemberPage {
		return MemberPage{}, errs.Validation("limit", "must be between 1 and %d", MaxMemberPage)
	}
	if offset < 0 {
		return MemberPage{}, errs.Validation("offset", "must not be negative")
	}

	q := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where("LOWER(username) LIKE ? ESCAPE '!'", pattern)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return MemberPage{}, errs.New(err, "failed to count members")
	}
	var users []models.User
	err := q.Session(&gorm.Session{}).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		return MemberPage{}, errs.New(err, "failed to list members")
	}

	page := MemberPage{Members: make([]Member, 0, len(users)), Total: total, Limit: limit, Offset: offset}
	for _, u := range users {
		page.Members = append(page.Members, memberOf(u))
	}
	return page, nil
}
