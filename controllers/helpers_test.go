package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/calendar"
	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/profiles"
	"github.com/cppla/cohort/routes"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/testutil"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

type harness struct {
	t      *testing.T
	db     *gorm.DB
	redis  *miniredis.Miniredis
	files  *storage.Memory
	router *gin.Engine

	alice, bob, root models.User
	tokens           map[uint]string
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.AppConfig{
		JWTSecret:      "test-secret",
		GinMode:        "test",
		StorageBackend: "memory",
		AdminUsernames: []string{"root"},
	}
	config.Set(cfg)
	cfg = config.Get()

	mr := miniredis.RunT(t)
	utils.SetRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { utils.SetRedis(nil) })

	db := testutil.NewDB(t)
	files := storage.NewMemory()
	authz := content.NewConfigAuthorizer(db, cfg)
	notifier := notify.NewService(db, nil, nil)
	store := content.NewStore(db, authz, notifier)
	linker := content.NewLinker(db, cfg.MaxFilesPerEntity)
	reg := prometheus.NewRegistry()

	h := &harness{
		t:      t,
		db:     db,
		redis:  mr,
		files:  files,
		tokens: map[uint]string{},
		router: routes.SetupRouter(routes.Deps{
			DB:        db,
			Config:    cfg,
			Content:   content.NewService(store, linker),
			Uploads:   uploads.NewService(db, files, uploads.LimitsFromConfig(cfg), time.Hour),
			Storage:   files,
			Notify:    notifier,
			Calendar:  calendar.NewService(db, authz, nil),
			Profiles:  profiles.NewService(db, nil),
			Metrics:   utils.MustNewMetrics(reg),
			Gatherer:  reg,
			AccessLog: zap.NewNop(),
		}),
	}
	h.alice = testutil.CreateUser(t, db, "alice")
	h.bob = testutil.CreateUser(t, db, "bob")
	h.root = testutil.CreateUser(t, db, "root")
	return h
}

func (h *harness) token(u models.User) string {
	if tok, ok := h.tokens[u.ID]; ok {
		return tok
	}
	tok, err := utils.GenerateToken(u.ID, u.Username, time.Hour)
	require.NoError(h.t, err)
	h.tokens[u.ID] = tok
	return tok
}

func (h *harness) send(req *http.Request, as *models.User) *httptest.ResponseRecorder {
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+h.token(*as))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// do sends body as JSON. as is nil for anonymous requests.
func (h *harness) do(method, path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(req, as)
}

// decode checks the HTTP status and unpacks the envelope's data into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, status int, out interface{}) envelope {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (h *harness) upload(as models.User, name, mimeType string, data []byte) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(h.t, mw.WriteField("id", uuid.NewString()))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	require.NoError(h.t, err)
	_, err = part.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(req, &as)
}

func (h *harness) uploadPNG(as models.User, name string) uploads.AttachmentRef {
	h.t.Helper()
	var ref uploads.AttachmentRef
	decode(h.t, h.upload(as, name, "image/png", testutil.PNG), http.StatusOK, &ref)
	return ref
}

func (h *harness) createPost(as models.User, body string) content.Entity {
	h.t.Helper()
	var res content.SaveResult
	w := h.do(http.MethodPost, "/api/v1/content", map[string]interface{}{"kind": "post", "title": "t", "body": body}, &as)
	decode(h.t, w, http.StatusOK, &res)
	return res.Entity
}

func (h *harness) createComment(as models.User, postID, parentID, body string) content.Entity {
	h.t.Helper()
	var res content.SaveResult
	w := h.do(http.MethodPost, "/api/v1/content", map[string]interface{}{
		"kind": "comment", "postId": postID, "parentId": parentID, "body": body,
	}, &as)
	decode(h.t, w, http.StatusOK, &res)
	return res.Entity
}
