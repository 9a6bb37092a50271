package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/cohort/errs"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Business codes for typed domain errors.
const (
	CodeValidation = 40020
	CodeForbidden  = 40301
	CodeNotFound   = 40401
	CodeConflict   = 40901
	CodeTransport  = 50201
	CodeInternal   = 50000
)

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, 200, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// ErrorFrom maps a domain error to its HTTP status and business code.
// Unknown errors are logged and answered with a generic message.
func ErrorFrom(ctx *gin.Context, err error) {
	var (
		validation *errs.ValidationError
		notFound   *errs.NotFoundError
		forbidden  *errs.AuthorizationError
		conflict   *errs.ConflictError
		transport  *errs.TransportError
	)
	switch {
	case errors.As(err, &validation):
		Error(ctx, http.StatusBadRequest, CodeValidation, validation.Error())
	case errors.As(err, &notFound):
		Error(ctx, http.StatusNotFound, CodeNotFound, notFound.Error())
	case errors.As(err, &forbidden):
		L().Warn("authorization denied",
			zap.Uint("actor_id", forbidden.ActorID),
			zap.String("action", forbidden.Action),
			zap.String("path", ctx.Request.URL.Path))
		Error(ctx, http.StatusForbidden, CodeForbidden, forbidden.Error())
	case errors.As(err, &conflict):
		Error(ctx, http.StatusConflict, CodeConflict, conflict.Error())
	case errors.As(err, &transport):
		L().Error("storage transport failed", zap.Error(err))
		Error(ctx, http.StatusBadGateway, CodeTransport, "file storage unavailable")
	default:
		L().Error("request failed", zap.Error(err), zap.String("path", ctx.Request.URL.Path))
		Error(ctx, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
