package uploads

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/testutil"
)

func newService(t *testing.T) (*Service, *storage.Memory, *testutil.Clock) {
	db := testutil.NewDB(t)
	mem := storage.NewMemory()
	clock := testutil.NewClock()
	return NewService(db, mem, DefaultLimits(), time.Hour, WithClock(clock.Now)), mem, clock
}

func pngInput(id string) Input {
	return Input{ID: id, FileName: "shot 1.png", Size: int64(len(testutil.PNG)), MimeType: "image/png", Body: bytes.NewReader(testutil.PNG)}
}

func TestUploadStoresObjectAndLedgerRow(t *testing.T) {
	svc, mem, clock := newService(t)
	id := uuid.NewString()

	ref, err := svc.Upload(context.Background(), 7, pngInput(id))
	require.NoError(t, err)

	assert.Equal(t, id, ref.ID)
	assert.Equal(t, KindImage, ref.Kind)
	assert.Equal(t, "attachments/2024/05/01/"+id+"/shot_1.png", ref.StorageKey)
	assert.Equal(t, int64(len(testutil.PNG)), ref.FileSizeBytes)

	obj, ok := mem.Get(ref.StorageKey)
	require.True(t, ok)
	assert.Equal(t, testutil.PNG, obj.Data, "the sniffed prefix must not be lost")

	var row models.UploadedFile
	require.NoError(t, svc.db.First(&row, "id = ?", id).Error)
	assert.Equal(t, uint(7), row.UploaderID)
	assert.Nil(t, row.LinkedAt)
	assert.True(t, row.ExpireAt.Equal(clock.Now().Add(time.Hour)))
}

func TestUploadReplacesNonUUIDIDs(t *testing.T) {
	svc, _, _ := newService(t)
	ref, err := svc.Upload(context.Background(), 1, pngInput("not-a-uuid"))
	require.NoError(t, err)
	_, perr := uuid.Parse(ref.ID)
	assert.NoError(t, perr)
}

func TestUploadRejectsMismatchedContent(t *testing.T) {
	svc, mem, _ := newService(t)
	body := []byte("<html>not an image</html>")
	_, err := svc.Upload(context.Background(), 1, Input{FileName: "x.png", Size: int64(len(body)), MimeType: "image/png", Body: bytes.NewReader(body)})
	assert.True(t, errs.IsValidation(err))
	assert.Empty(t, mem.Keys())
}

func TestUploadRejectsOversize(t *testing.T) {
	svc, _, _ := newService(t)
	in := pngInput("")
	in.Size = 6 * mib
	_, err := svc.Upload(context.Background(), 1, in)
	assert.True(t, errs.IsValidation(err))
}

func TestUploadStorageFailureIsTransportError(t *testing.T) {
	svc, mem, _ := newService(t)
	mem.FailPut = map[string]error{"*": errors.New("bucket unavailable")}

	_, err := svc.Upload(context.Background(), 1, pngInput(""))
	require.Error(t, err)
	assert.True(t, errs.IsTransport(err))

	var count int64
	svc.db.Model(&models.UploadedFile{}).Count(&count)
	assert.Zero(t, count)
}

func TestUploadDuplicateIDConflicts(t *testing.T) {
	svc, _, _ := newService(t)
	id := uuid.NewString()
	_, err := svc.Upload(context.Background(), 1, pngInput(id))
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), 1, pngInput(id))
	assert.True(t, errs.IsConflict(err))
}
