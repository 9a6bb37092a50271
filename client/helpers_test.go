package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cppla/cohort/testutil"
	"github.com/cppla/cohort/uploads"
)

type memFile struct {
	name string
	mime string
	data []byte
	size int64
}

func (f *memFile) Name() string     { return f.name }
func (f *memFile) MimeType() string { return f.mime }
func (f *memFile) Size() int64 {
	if f.size != 0 {
		return f.size
	}
	return int64(len(f.data))
}
func (f *memFile) Open() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(f.data)), nil }

func png(name string) *memFile {
	return &memFile{name: name, mime: "image/png", data: testutil.PNG}
}

// fakeTransport records calls and answers with canned results. A channel in gate blocks the
// matching upload until it is closed.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	gate     map[string]chan struct{}
	progress []int
}

func (f *fakeTransport) Upload(ctx context.Context, id string, file LocalFile, onProgress func(int)) (uploads.AttachmentRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, file.Name())
	gate := f.gate[file.Name()]
	err := f.fail[file.Name()]
	steps := f.progress
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	for _, p := range steps {
		onProgress(p)
	}
	if err != nil {
		return uploads.AttachmentRef{}, err
	}
	return uploads.AttachmentRef{
		ID:            id,
		StorageKey:    "attachments/2024/05/01/" + id + "/" + file.Name(),
		Kind:          uploads.KindImage,
		FileName:      file.Name(),
		FileSizeBytes: file.Size(),
		MimeType:      file.MimeType(),
	}, nil
}

var errNetwork = errors.New("connection reset")
