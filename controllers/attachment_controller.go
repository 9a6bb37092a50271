package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

const (
	// multipart envelope allowance on top of the largest file
	formOverhead = 1 << 20
	maxSignKeys  = 100
)

// AttachmentController receives uploads and links them to posts and comments.
type AttachmentController struct {
	uploads *uploads.Service
	linker  *content.Linker
	storage storage.Storage
	signTTL time.Duration
}

// NewAttachmentController creates an AttachmentController.
func NewAttachmentController(up *uploads.Service, linker *content.Linker, st storage.Storage, signTTL time.Duration) *AttachmentController {
	return &AttachmentController{uploads: up, linker: linker, storage: st, signTTL: signTTL}
}

// Upload stores one multipart file ("file") under the client-minted id ("id") and returns its
// reference. The file stays unlinked until a commit claims it.
func (a *AttachmentController) Upload(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}

	limits := a.uploads.Limits()
	maxBody := max(limits.MaxImageBytes, limits.MaxVideoBytes) + formOverhead
	if ctx.Request.ContentLength > maxBody {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "upload too large")
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBody)

	fh, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "upload too large")
			return
		}
		utils.ErrorFrom(ctx, errs.Validation("file", "is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.ErrorFrom(ctx, &errs.TransportError{FileName: fh.Filename, Err: err})
		return
	}
	defer f.Close()

	ref, err := a.uploads.Upload(ctx.Request.Context(), userID, uploads.Input{
		ID:       strings.TrimSpace(ctx.PostForm("id")),
		FileName: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Body:     f,
	})
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.Success(ctx, ref)
}

type commitRequest struct {
	ParentType string                  `json:"parentType"`
	ParentID   string                  `json:"parentId"`
	NewRefs    []uploads.AttachmentRef `json:"newRefs"`
	DeletedIDs []string                `json:"deletedIds"`
}

// Commit applies attachment additions and removals to a parent the caller wrote.
func (a *AttachmentController) Commit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req commitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return
	}
	kind, err := content.ParseKind(req.ParentType)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	parent := content.ParentRef{Kind: kind, ID: req.ParentID}

	out, err := a.linker.Commit(ctx.Request.Context(), userID, parent, req.NewRefs, req.DeletedIDs)
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	utils.CacheDelete(utils.CacheKeyAttachments(string(kind), req.ParentID))
	utils.Success(ctx, out)
}

// List returns a parent's attachments in display order.
func (a *AttachmentController) List(ctx *gin.Context) {
	kind, err := content.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	id := ctx.Param("id")
	cacheKey := utils.CacheKeyAttachments(string(kind), id)
	if serveCached(ctx, cacheKey) {
		return
	}
	out, err := a.linker.List(ctx.Request.Context(), content.ParentRef{Kind: kind, ID: id})
	if err != nil {
		utils.ErrorFrom(ctx, err)
		return
	}
	successCached(ctx, cacheKey, out)
}

// SignURLs resolves storage keys to readable URLs.
func (a *AttachmentController) SignURLs(ctx *gin.Context) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorFrom(ctx, errs.Validation("body", "invalid request payload"))
		return
	}
	keys := utils.Unique(req.Keys)
	if len(keys) == 0 {
		utils.ErrorFrom(ctx, errs.Validation("keys", "is required"))
		return
	}
	if len(keys) > maxSignKeys {
		utils.ErrorFrom(ctx, errs.Validation("keys", "at most %d keys per request", maxSignKeys))
		return
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "attachments/") {
			utils.ErrorFrom(ctx, errs.Validation("keys", "%q is not an attachment key", k))
			return
		}
	}
	urls, err := storage.SignURLs(ctx.Request.Context(), a.storage, keys, a.signTTL)
	if err != nil {
		utils.ErrorFrom(ctx, &errs.TransportError{Err: err})
		return
	}
	utils.Success(ctx, urls)
}
