package client

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const previewScheme = "preview://"

// Preview is a revocable handle used to render a selected file before it is uploaded.
type Preview struct {
	URL string

	owner    *Previews
	file     LocalFile
	released bool
}

// Release revokes the handle. Releasing twice is a no-op.
func (p *Preview) Release() {
	if p == nil || p.owner == nil {
		return
	}
	p.owner.release(p)
}

// Released reports whether the handle has been revoked.
func (p *Preview) Released() bool {
	if p == nil || p.owner == nil {
		return true
	}
	p.owner.mu.Lock()
	defer p.owner.mu.Unlock()
	return p.released
}

// Previews mints preview handles and tracks which are still live. Close releases everything.
type Previews struct {
	mu   sync.Mutex
	live map[string]*Preview
}

func NewPreviews() *Previews {
	return &Previews{live: make(map[string]*Preview)}
}

func (r *Previews) Acquire(f LocalFile) *Preview {
	p := &Preview{URL: previewScheme + uuid.NewString(), owner: r, file: f}
	r.mu.Lock()
	r.live[p.URL] = p
	r.mu.Unlock()
	return p
}

// Resolve returns the file behind a live preview URL.
func (r *Previews) Resolve(url string) (LocalFile, bool) {
	if !strings.HasPrefix(url, previewScheme) {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.live[url]
	if !ok {
		return nil, false
	}
	return p.file, true
}

func (r *Previews) release(p *Preview) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.file = nil
	delete(r.live, p.URL)
}

// Live lists the URLs of handles not yet released.
func (r *Previews) Live() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.live))
	for url := range r.live {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

func (r *Previews) Close() {
	r.mu.Lock()
	held := make([]*Preview, 0, len(r.live))
	for _, p := range r.live {
		held = append(held, p)
	}
	r.mu.Unlock()
	for _, p := range held {
		r.release(p)
	}
}
