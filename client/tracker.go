// Package client is the Go SDK for the community API: it tracks files picked for upload,
// reconciles them with saved attachments and submits posts and comments.
package client

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/uploads"
)

// LocalFile is a file picked for upload.
type LocalFile interface {
	Name() string
	Size() int64
	MimeType() string
	Open() (io.ReadCloser, error)
}

// DiskFile is a LocalFile backed by a path on disk.
type DiskFile struct {
	Path string
	size int64
	mime string
}

// OpenDiskFile stats path and detects its MIME type from the extension, falling back to content.
func OpenDiskFile(path string) (*DiskFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	m := mime.TypeByExtension(filepath.Ext(path))
	if m == "" {
		detected, err := mimetype.DetectFile(path)
		if err != nil {
			return nil, err
		}
		m = detected.String()
	}
	return &DiskFile{Path: path, size: info.Size(), mime: m}, nil
}

func (f *DiskFile) Name() string                 { return filepath.Base(f.Path) }
func (f *DiskFile) Size() int64                  { return f.size }
func (f *DiskFile) MimeType() string             { return f.mime }
func (f *DiskFile) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// PendingUpload is a snapshot of one tracked file.
type PendingUpload struct {
	ID       string
	File     LocalFile
	Preview  *Preview
	Status   Status
	Progress int
	Err      error
	Ref      *uploads.AttachmentRef
}

// Uploaded is a finished upload handed over to a Draft together with its preview handle.
type Uploaded struct {
	Ref     uploads.AttachmentRef
	Preview *Preview
}

// Tracker owns the files picked for upload until they are handed to a Draft.
type Tracker struct {
	mu        sync.Mutex
	limits    uploads.Limits
	transport Transport
	previews  *Previews
	order     []string
	entries   map[string]*PendingUpload
	closed    bool
}

func NewTracker(transport Transport, limits uploads.Limits, previews *Previews) *Tracker {
	if previews == nil {
		previews = NewPreviews()
	}
	return &Tracker{
		limits:    limits,
		transport: transport,
		previews:  previews,
		entries:   make(map[string]*PendingUpload),
	}
}

// Select admits files into the tracker. Only maxCount-currentCount files are considered; the
// overflow is dropped without an error. Each considered file that fails validation yields one
// error and the rest of the batch is still admitted.
func (t *Tracker) Select(files []LocalFile, currentCount, maxCount int) ([]PendingUpload, []error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, []error{errs.Conflict("upload tracker is closed")}
	}

	slots := maxCount - currentCount
	if slots <= 0 {
		return nil, nil
	}
	if len(files) > slots {
		files = files[:slots]
	}

	var (
		accepted []PendingUpload
		rejected []error
	)
	for _, f := range files {
		if _, err := t.limits.Validate(f.Name(), f.Size(), f.MimeType()); err != nil {
			rejected = append(rejected, err)
			continue
		}
		p := &PendingUpload{
			ID:      uuid.NewString(),
			File:    f,
			Preview: t.previews.Acquire(f),
			Status:  StatusPending,
		}
		t.entries[p.ID] = p
		t.order = append(t.order, p.ID)
		accepted = append(accepted, *p)
	}
	return accepted, rejected
}

// Remove discards an entry and releases its preview. Entries being uploaded cannot be removed.
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok || p.Status == StatusUploading {
		return false
	}
	p.Preview.Release()
	t.drop(id)
	return true
}

func (t *Tracker) drop(id string) {
	delete(t.entries, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// Begin uploads one pending or failed entry and blocks until the transport returns.
// A failure leaves the entry in the error state so it can be retried or removed.
func (t *Tracker) Begin(ctx context.Context, id string) error {
	t.mu.Lock()
	p, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return errs.NotFound("upload", id)
	}
	if p.Status != StatusPending && p.Status != StatusError {
		t.mu.Unlock()
		return errs.Conflict("upload %s is %s", id, p.Status)
	}
	p.Status = StatusUploading
	p.Progress = 0
	p.Err = nil
	file := p.File
	t.mu.Unlock()

	ref, err := t.transport.Upload(ctx, id, file, func(percent int) { t.progress(id, percent) })

	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok = t.entries[id]
	if !ok {
		// The tracker was closed mid-upload; the stored file becomes an orphan.
		return err
	}
	if err != nil {
		p.Status = StatusError
		p.Err = err
		return err
	}
	p.Status = StatusCompleted
	p.Progress = 100
	p.Ref = &ref
	return nil
}

func (t *Tracker) progress(id string, percent int) {
	if percent > 100 {
		percent = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok || p.Status != StatusUploading || percent <= p.Progress {
		return
	}
	p.Progress = percent
}

// UploadAll uploads every pending entry one after another in selection order.
func (t *Tracker) UploadAll(ctx context.Context) []error {
	t.mu.Lock()
	var ids []string
	for _, id := range t.order {
		if t.entries[id].Status == StatusPending {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	var failed []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			failed = append(failed, err)
			break
		}
		if err := t.Begin(ctx, id); err != nil {
			failed = append(failed, err)
		}
	}
	return failed
}

// TakeCompleted removes finished entries in selection order. Their preview handles now belong
// to the caller.
func (t *Tracker) TakeCompleted() []Uploaded {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Uploaded
	kept := t.order[:0]
	for _, id := range t.order {
		p := t.entries[id]
		if p.Status != StatusCompleted {
			kept = append(kept, id)
			continue
		}
		out = append(out, Uploaded{Ref: *p.Ref, Preview: p.Preview})
		delete(t.entries, id)
	}
	t.order = kept
	return out
}

func (t *Tracker) Get(id string) (PendingUpload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if !ok {
		return PendingUpload{}, false
	}
	return *p, true
}

// List returns a snapshot of every entry in selection order.
func (t *Tracker) List() []PendingUpload {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PendingUpload, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.entries[id])
	}
	return out
}

// ActiveCount counts entries that still occupy an attachment slot, i.e. all but failed ones.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.entries {
		if p.Status != StatusError {
			n++
		}
	}
	return n
}

// Unsettled counts entries that are waiting for or in the middle of an upload.
func (t *Tracker) Unsettled() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.entries {
		if p.Status == StatusPending || p.Status == StatusUploading {
			n++
		}
	}
	return n
}

// Close releases every preview the tracker still holds. Further calls are no-ops.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, id := range t.order {
		t.entries[id].Preview.Release()
	}
	t.entries = make(map[string]*PendingUpload)
	t.order = nil
}
