package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/errs"
)

func TestErrorFromMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"validation", errs.Validation("body", "is required"), http.StatusBadRequest, CodeValidation},
		{"not found", errs.NotFound("post", "1"), http.StatusNotFound, CodeNotFound},
		{"forbidden", errs.Forbidden(7, "edit post"), http.StatusForbidden, CodeForbidden},
		{"conflict", errs.Conflict("post is deleted"), http.StatusConflict, CodeConflict},
		{"transport", &errs.TransportError{Err: errors.New("s3 down")}, http.StatusBadGateway, CodeTransport},
		{"internal", errs.New(errors.New("db"), "query failed"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(w)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			ErrorFrom(ctx, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body JSONResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello ", Sanitize("hello <script>alert(1)</script>"))
	assert.Equal(t, "Week 3 recap", SanitizePlain("  <b>Week 3</b> recap "))
}
