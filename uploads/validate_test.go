package uploads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/testutil"
)

func TestValidate(t *testing.T) {
	kind, err := Validate("cat.png", 4*mib, "image/png")
	require.NoError(t, err)
	assert.Equal(t, KindImage, kind)

	kind, err = Validate("talk.mp4", 99*mib, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, kind)

	_, err = Validate("big.jpg", 6*mib, "image/jpeg")
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "image limit is 5.0MB")

	_, err = Validate("huge.mov", 101*mib, "video/quicktime")
	assert.True(t, errs.IsValidation(err))

	_, err = Validate("doc.pdf", 10, "application/pdf")
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = Validate("empty.png", 0, "image/png")
	assert.True(t, errs.IsValidation(err))
}

func TestKindOfIgnoresParameters(t *testing.T) {
	k, ok := KindOf("IMAGE/PNG; charset=binary")
	assert.True(t, ok)
	assert.Equal(t, KindImage, k)
}

func TestSniffKind(t *testing.T) {
	m, k, ok := SniffKind(testutil.PNG)
	require.True(t, ok)
	assert.Equal(t, "image/png", m)
	assert.Equal(t, KindImage, k)

	_, k, ok = SniffKind(testutil.MP4)
	require.True(t, ok)
	assert.Equal(t, KindVideo, k)

	_, _, ok = SniffKind([]byte("just some text"))
	assert.False(t, ok)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_photo__1_.png", SanitizeFilename("my photo (1).png"))
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "evil.png", SanitizeFilename(`C:\tmp\evil.png`))
	assert.Equal(t, "unnamed", SanitizeFilename(""))
}

func TestStorageKey(t *testing.T) {
	at := time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "attachments/2024/03/07/abc/clip_1.mp4", StorageKey(at, "abc", "clip 1.mp4"))
}
