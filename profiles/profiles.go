// Package profiles manages member profiles, portfolios and the member directory.
package profiles

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/utils"
)

const (
	MaxBioRunes        = 1000
	MaxLookingForRunes = 500
	MaxSkills          = 20
	MaxTagRunes        = 50
	MaxLinkRunes       = 512
)

// ProfileInput is a partial profile update. Nil fields keep their value; an empty link clears it.
type ProfileInput struct {
	Bio         *string  `json:"bio"`
	Skills      []string `json:"skills"`
	LookingFor  *string  `json:"lookingFor"`
	GithubURL   *string  `json:"githubUrl"`
	LinkedinURL *string  `json:"linkedinUrl"`
	WebsiteURL  *string  `json:"websiteUrl"`
	TwitterURL  *string  `json:"twitterUrl"`
	IsPublic    *bool    `json:"isPublic"`
}

// Member is the directory entry of a user.
type Member struct {
	models.Author
	CreatedAt time.Time `json:"created_at"`
}

func memberOf(u models.User) Member {
	return Member{Author: u.Author(), CreatedAt: u.CreatedAt}
}

// PublicProfile is what other members see. Profile is nil when the user never saved one.
type PublicProfile struct {
	User      Member                 `json:"user"`
	Profile   *models.UserProfile    `json:"profile"`
	Portfolio []models.PortfolioItem `json:"portfolio_items"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, now: time.Now, log: log}
}

func cleanText(field, raw string, limit int) (string, error) {
	out := strings.TrimSpace(utils.Sanitize(raw))
	if n := utf8.RuneCountInString(out); n > limit {
		return "", errs.Validation(field, "must be at most %d characters, got %d", limit, n)
	}
	return out, nil
}

func cleanLink(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if utf8.RuneCountInString(raw) > MaxLinkRunes {
		return "", errs.Validation(field, "must be at most %d characters", MaxLinkRunes)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errs.Validation(field, "must be an http or https URL")
	}
	return raw, nil
}

// cleanTags trims every tag and drops blanks before applying the count limit.
func cleanTags(field string, tags []string, limit int) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = utils.SanitizePlain(t)
		if t == "" {
			continue
		}
		if n := utf8.RuneCountInString(t); n > MaxTagRunes {
			return nil, errs.Validation(field, "entries must be at most %d characters, got %d", MaxTagRunes, n)
		}
		out = append(out, t)
	}
	if len(out) > limit {
		return nil, errs.Validation(field, "must have at most %d entries, got %d", limit, len(out))
	}
	return out, nil
}

// apply validates the set fields, copies them onto row and returns their column names.
func (in ProfileInput) apply(row *models.UserProfile) ([]string, error) {
	var cols []string
	if in.Bio != nil {
		bio, err := cleanText("bio", *in.Bio, MaxBioRunes)
		if err != nil {
			return nil, err
		}
		row.Bio = bio
		cols = append(cols, "bio")
	}
	if in.LookingFor != nil {
		v, err := cleanText("lookingFor", *in.LookingFor, MaxLookingForRunes)
		if err != nil {
			return nil, err
		}
		row.LookingFor = v
		cols = append(cols, "looking_for")
	}
	if in.Skills != nil {
		skills, err := cleanTags("skills", in.Skills, MaxSkills)
		if err != nil {
			return nil, err
		}
		row.Skills = skills
		cols = append(cols, "skills")
	}
	links := []struct {
		field, column string
		value         *string
		dst           *string
	}{
		{"githubUrl", "github_url", in.GithubURL, &row.GithubURL},
		{"linkedinUrl", "linkedin_url", in.LinkedinURL, &row.LinkedinURL},
		{"websiteUrl", "website_url", in.WebsiteURL, &row.WebsiteURL},
		{"twitterUrl", "twitter_url", in.TwitterURL, &row.TwitterURL},
	}
	for _, l := range links {
		if l.value == nil {
			continue
		}
		v, err := cleanLink(l.field, *l.value)
		if err != nil {
			return nil, err
		}
		*l.dst = v
		cols = append(cols, l.column)
	}
	if in.IsPublic != nil {
		row.IsPublic = *in.IsPublic
		cols = append(cols, "is_public")
	}
	return cols, nil
}

func (s *Service) find(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New(err, "failed to load profile of user %d", userID)
	}
	return &p, nil
}

// GetOrCreate returns the caller's profile, creating a public empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, userID uint) (*models.UserProfile, error) {
	now := s.now()
	p := models.UserProfile{UserID: userID, Skills: []string{}, IsPublic: true, CreatedAt: now, UpdatedAt: now}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
	if err != nil {
		return nil, errs.New(err, "failed to create profile of user %d", userID)
	}
	got, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, errs.NotFound("profile", strconv.FormatUint(uint64(userID), 10))
	}
	return got, nil
}

// Update applies a partial change to the caller's own profile.
func (s *Service) Update(ctx context.Context, userID uint, in ProfileInput) (*models.UserProfile, error) {
	var row models.UserProfile
	cols, err := in.apply(&row)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	row.UpdatedAt = s.now()
	cols = append(cols, "updated_at")
	// Select writes zero values too, so a profile can be made private or have its bio cleared.
	err = s.db.WithContext(ctx).Model(&models.UserProfile{}).Where("user_id = ?", userID).
		Select(cols).Updates(&row).Error
	if err != nil {
		return nil, errs.New(err, "failed to update profile of user %d", userID)
	}
	s.log.Info("profile updated", zap.Uint("user_id", userID), zap.Strings("fields", cols))
	return s.GetOrCreate(ctx, userID)
}

func (s *Service) loadUser(ctx context.Context, userID uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u, errs.NotFound("user", strconv.FormatUint(uint64(userID), 10))
	}
	if err != nil {
		return u, errs.New(err, "failed to load user %d", userID)
	}
	return u, nil
}

// Public returns a member's profile page. A private profile is visible to its owner only and
// reads as not found to everyone else.
func (s *Service) Public(ctx context.Context, viewerID, userID uint) (*PublicProfile, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil && !p.IsPublic && viewerID != userID {
		return nil, errs.NotFound("profile", strconv.FormatUint(uint64(userID), 10))
	}
	items, err := s.listPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{User: memberOf(u), Profile: p, Portfolio: items}, nil
}
