package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

// ConfigController serves configuration clients need before talking to the API.
type ConfigController struct {
	limits uploads.Limits
}

func NewConfigController(limits uploads.Limits) *ConfigController {
	return &ConfigController{limits: limits}
}

// GetUploads returns the upload ceilings and accepted types so clients can validate before
// sending bytes.
func (c *ConfigController) GetUploads(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"maxImageBytes":    c.limits.MaxImageBytes,
		"maxVideoBytes":    c.limits.MaxVideoBytes,
		"maxFiles":         c.limits.MaxFiles,
		"allowedMimeTypes": uploads.AllowedMIMETypes(),
	})
}
