package content

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/testutil"
	"github.com/cppla/cohort/uploads"
)

type sentNotice struct {
	userID uint
	msg    notify.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uint, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotice{userID: userID, msg: msg})
	return nil
}

type fakeAuthz map[uint]bool

func (f fakeAuthz) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	return f[userID], nil
}

type env struct {
	db     *gorm.DB
	clock  *testutil.Clock
	store  *Store
	linker *Linker
	svc    *Service
	notes  *fakeNotifier
	alice  models.User
	bob    models.User
	admin  models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	e := &env{db: db, clock: testutil.NewClock(), notes: &fakeNotifier{}}
	e.alice = testutil.CreateUser(t, db, "alice")
	e.bob = testutil.CreateUser(t, db, "bob")
	e.admin = testutil.CreateUser(t, db, "root")
	e.store = NewStore(db, fakeAuthz{e.admin.ID: true}, e.notes, WithStoreClock(e.clock.Now))
	e.linker = NewLinker(db, 10, WithLinkerClock(e.clock.Now))
	e.svc = NewService(e.store, e.linker)
	return e
}

func (e *env) post(t *testing.T, author uint, body string) Entity {
	t.Helper()
	p, err := e.store.Create(context.Background(), CreateInput{Kind: KindPost, AuthorID: author, Body: body})
	require.NoError(t, err)
	return p
}

func (e *env) comment(t *testing.T, author uint, postID, parentID, body string) Entity {
	t.Helper()
	c, err := e.store.Create(context.Background(), CreateInput{Kind: KindComment, AuthorID: author, PostID: postID, ParentID: parentID, Body: body})
	require.NoError(t, err)
	return c
}

// upload records a ledger row the way uploads.Service does and returns its ref.
func (e *env) upload(t *testing.T, uploader uint, name string) uploads.AttachmentRef {
	t.Helper()
	id := uuid.NewString()
	key := uploads.StorageKey(e.clock.Now(), id, name)
	require.NoError(t, e.db.Create(&models.UploadedFile{
		ID:         id,
		UploaderID: uploader,
		StorageKey: key,
		FileName:   name,
		FileSize:   int64(len(testutil.PNG)),
		MimeType:   "image/png",
		Kind:       string(uploads.KindImage),
		ExpireAt:   e.clock.Now().Add(time.Hour),
		CreatedAt:  e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}).Error)
	return uploads.AttachmentRef{
		ID:            id,
		StorageKey:    key,
		Kind:          uploads.KindImage,
		FileName:      name,
		FileSizeBytes: int64(len(testutil.PNG)),
		MimeType:      "image/png",
	}
}

func ids(as []Attachment) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func positions(as []Attachment) []int {
	out := make([]int, 0, len(as))
	for _, a := range as {
		out = append(out, a.Position)
	}
	return out
}

var errNotifyDown = errors.New("notification backend down")
