package content

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/models"
)

// ConfigAuthorizer grants the admin capability to users whose username is listed in configuration.
type ConfigAuthorizer struct {
	db  *gorm.DB
	cfg config.AppConfig
}

func NewConfigAuthorizer(db *gorm.DB, cfg config.AppConfig) *ConfigAuthorizer {
	return &ConfigAuthorizer{db: db, cfg: cfg}
}

func (a *ConfigAuthorizer) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 || len(a.cfg.AdminUsernames) == 0 {
		return false, nil
	}
	var u models.User
	err := a.db.WithContext(ctx).Select("id", "username").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.cfg.IsAdminUsername(u.Username), nil
}
