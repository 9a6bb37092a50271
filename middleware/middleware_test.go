package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) {
	t.Helper()
	config.Set(config.AppConfig{JWTSecret: "middleware-secret", GinMode: "test"})
	mr := miniredis.RunT(t)
	utils.SetRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { utils.SetRedis(nil) })
}

func whoami(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"id": CurrentUserID(ctx)})
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func codeOf(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestAuthRequired(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/me", AuthRequired(), whoami)

	tok, err := utils.GenerateToken(7, "alice", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", 40101},
		{"wrong scheme", "Basic abc", 40102},
		{"empty token", "Bearer  ", 40103},
		{"garbage", "Bearer abc.def.ghi", 40105},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.code, codeOf(t, w))
		})
	}

	w := serve(r, "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7}`, w.Body.String())

	utils.BlacklistToken(tok, time.Now().Add(time.Hour))
	w = serve(r, "bearer "+tok)
	assert.Equal(t, 40104, codeOf(t, w))
}

func TestOptionalAuth(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/me", OptionalAuth(), whoami)

	tok, err := utils.GenerateToken(9, "bob", time.Hour)
	require.NoError(t, err)

	assert.JSONEq(t, `{"id":0}`, serve(r, "").Body.String())
	assert.JSONEq(t, `{"id":0}`, serve(r, "Bearer nonsense").Body.String())
	assert.JSONEq(t, `{"id":9}`, serve(r, "Bearer "+tok).Body.String())
}

func TestLimiterSetRefills(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newLimiterSet(60)
	s.now = func() time.Time { return now }

	// burst is half the per-minute budget
	for i := 0; i < 30; i++ {
		require.True(t, s.allow("10.0.0.1"), "request %d", i)
	}
	assert.False(t, s.allow("10.0.0.1"))
	assert.True(t, s.allow("10.0.0.2"), "keys have separate buckets")

	now = now.Add(time.Second)
	assert.True(t, s.allow("10.0.0.1"))
	assert.False(t, s.allow("10.0.0.1"))

	now = now.Add(10 * time.Minute)
	s.allow("10.0.0.3")
	assert.NotContains(t, s.limiters, "10.0.0.2")
}

func TestLimiterSetSweepsAtMostOncePerMinute(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	s := newLimiterSet(60)
	s.now = func() time.Time { return now }

	s.allow("a")
	now = start.Add(4*time.Minute + 59*time.Second)
	s.allow("b")
	assert.Contains(t, s.limiters, "a")

	now = start.Add(5*time.Minute + 30*time.Second)
	s.allow("c")
	assert.Contains(t, s.limiters, "a", "expired but the last sweep was under a minute ago")

	now = start.Add(6 * time.Minute)
	s.allow("c")
	assert.NotContains(t, s.limiters, "a")
	assert.Contains(t, s.limiters, "b")
	assert.Contains(t, s.limiters, "c")
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/ping", RateLimitMiddleware(2), func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })

	hit := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return w
	}
	assert.Equal(t, http.StatusOK, hit().Code)
	w := hit()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42901, codeOf(t, w))
}

func TestUploadRateLimitIsPerUser(t *testing.T) {
	r := gin.New()
	r.POST("/u/:id", func(ctx *gin.Context) {
		if ctx.Param("id") == "1" {
			ctx.Set(ContextUserIDKey, uint(1))
		} else {
			ctx.Set(ContextUserIDKey, uint(2))
		}
	}, UploadRateLimit(2), func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	post := func(id string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/u/"+id, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, post("1"))
	assert.Equal(t, http.StatusTooManyRequests, post("1"))
	assert.Equal(t, http.StatusNoContent, post("2"))
}

func TestMetricsLabelsRouteAndStatusClass(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := utils.MustNewMetrics(reg)
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/items/:id", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	for _, p := range []string{"/items/1", "/items/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/items/:id", "2xx")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "4xx")))
}
