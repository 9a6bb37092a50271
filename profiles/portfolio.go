package profiles

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/utils"
)

const (
	MaxItemTitleRunes       = 100
	MaxItemDescriptionRunes = 1000
	MaxTechnologies         = 10
)

type PortfolioInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ProjectURL   string   `json:"url"`
	ImageURL     string   `json:"imageUrl"`
	Technologies []string `json:"technologies"`
}

func (in PortfolioInput) clean() (PortfolioInput, error) {
	in.Title = utils.SanitizePlain(in.Title)
	if in.Title == "" {
		return in, errs.Validation("title", "is required")
	}
	if n := utf8.RuneCountInString(in.Title); n > MaxItemTitleRunes {
		return in, errs.Validation("title", "must be at most %d characters, got %d", MaxItemTitleRunes, n)
	}
	var err error
	if in.Description, err = cleanText("description", in.Description, MaxItemDescriptionRunes); err != nil {
		return in, err
	}
	if in.ProjectURL, err = cleanLink("url", in.ProjectURL); err != nil {
		return in, err
	}
	if in.ImageURL, err = cleanLink("imageUrl", in.ImageURL); err != nil {
		return in, err
	}
	if in.Technologies, err = cleanTags("technologies", in.Technologies, MaxTechnologies); err != nil {
		return in, err
	}
	return in, nil
}

// ListPortfolio returns a member's portfolio, newest first.
func (s *Service) ListPortfolio(ctx context.Context, userID uint) ([]models.PortfolioItem, error) {
	if _, err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.listPortfolio(ctx, userID)
}

func (s *Service) listPortfolio(ctx context.Context, userID uint) ([]models.PortfolioItem, error) {
	out := []models.PortfolioItem{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, errs.New(err, "failed to list portfolio of user %d", userID)
	}
	return out, nil
}

func (s *Service) CreateItem(ctx context.Context, actorID uint, in PortfolioInput) (*models.PortfolioItem, error) {
	in, err := in.clean()
	if err != nil {
		return nil, err
	}
	now := s.now()
	item := models.PortfolioItem{
		ID:           uuid.NewString(),
		UserID:       actorID,
		Title:        in.Title,
		Description:  in.Description,
		ProjectURL:   in.ProjectURL,
		ImageURL:     in.ImageURL,
		Technologies: in.Technologies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, errs.New(err, "failed to create portfolio item")
	}
	s.log.Info("portfolio item created", zap.String("item_id", item.ID), zap.Uint("actor_id", actorID))
	return &item, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (*models.PortfolioItem, error) {
	var item models.PortfolioItem
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("portfolio item", id)
	}
	if err != nil {
		return nil, errs.New(err, "failed to load portfolio item %s", id)
	}
	return &item, nil
}

func (s *Service) ownedItem(ctx context.Context, actorID uint, id, action string) (*models.PortfolioItem, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.UserID != actorID {
		return nil, errs.Forbidden(actorID, action)
	}
	return item, nil
}

// UpdateItem replaces the editable fields of one of the actor's items.
func (s *Service) UpdateItem(ctx context.Context, actorID uint, id string, in PortfolioInput) (*models.PortfolioItem, error) {
	item, err := s.ownedItem(ctx, actorID, id, "edit this portfolio item")
	if err != nil {
		return nil, err
	}
	in, err = in.clean()
	if err != nil {
		return nil, err
	}
	item.Title = in.Title
	item.Description = in.Description
	item.ProjectURL = in.ProjectURL
	item.ImageURL = in.ImageURL
	item.Technologies = in.Technologies
	item.UpdatedAt = s.now()
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, errs.New(err, "failed to update portfolio item %s", id)
	}
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, actorID uint, id string) error {
	if _, err := s.ownedItem(ctx, actorID, id, "delete this portfolio item"); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, actorID).Delete(&models.PortfolioItem{})
	if res.Error != nil {
		return errs.New(res.Error, "failed to delete portfolio item %s", id)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("portfolio item", id)
	}
	s.log.Info("portfolio item deleted", zap.String("item_id", id), zap.Uint("actor_id", actorID))
	return nil
}
