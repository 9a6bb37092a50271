package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/uploads"
)

// fakeAPI is a tiny in-memory stand-in for the HTTP API.
type fakeAPI struct {
	mu          sync.Mutex
	seq         int
	entities    map[string]content.Entity
	attachments map[string][]content.Attachment
	failCommits int
	commits     int
	reads       int
	uploaded    []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{entities: map[string]content.Entity{}, attachments: map[string][]content.Attachment{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/content", f.create)
	mux.HandleFunc("POST /api/v1/content/{kind}/{id}", f.update)
	mux.HandleFunc("GET /api/v1/content/{kind}/{id}", f.get)
	mux.HandleFunc("POST /api/v1/attachments/commit", f.commit)
	mux.HandleFunc("GET /api/v1/attachments/{kind}/{id}", f.list)
	mux.HandleFunc("POST /api/v1/uploads", f.upload)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func reply(w http.ResponseWriter, status, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": message, "data": data})
}

func (f *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == nil || *req.Body == "" {
		reply(w, http.StatusBadRequest, 40020, "body: is required", nil)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := content.Entity{ID: fmt.Sprintf("e%d", f.seq), Kind: req.Kind, AuthorID: 1, Body: *req.Body, PostID: req.PostID, ParentID: req.ParentID, CreatedAt: now, UpdatedAt: now, State: content.Active{}}
	f.entities[e.ID] = e
	reply(w, http.StatusOK, 0, "success", SaveResponse{Entity: e})
}

func (f *fakeAPI) update(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, 40401, r.PathValue("kind")+" "+r.PathValue("id")+" not found", nil)
		return
	}
	if req.Body != nil {
		e.Body = *req.Body
	}
	e.UpdatedAt = e.UpdatedAt.Add(time.Minute)
	f.entities[e.ID] = e
	reply(w, http.StatusOK, 0, "success", SaveResponse{Entity: e})
}

func (f *fakeAPI) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	e, ok := f.entities[r.PathValue("id")]
	if !ok {
		reply(w, http.StatusNotFound, 40401, r.PathValue("kind")+" "+r.PathValue("id")+" not found", nil)
		return
	}
	reply(w, http.StatusOK, 0, "success", e)
}

func (f *fakeAPI) commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	if f.failCommits > 0 {
		f.failCommits--
		reply(w, http.StatusInternalServerError, 50000, "internal server error", nil)
		return
	}
	parent := content.ParentRef{Kind: req.ParentType, ID: req.ParentID}
	deleted := map[string]bool{}
	for _, id := range req.DeletedIDs {
		deleted[id] = true
	}
	var next []content.Attachment
	for _, a := range f.attachments[req.ParentID] {
		if !deleted[a.ID] {
			next = append(next, a)
		}
	}
	for _, ref := range req.NewRefs {
		next = append(next, content.Attachment{ID: ref.ID, Parent: parent, Kind: ref.Kind, StorageKey: ref.StorageKey, FileName: ref.FileName})
	}
	for i := range next {
		next[i].Position = i
	}
	f.attachments[req.ParentID] = next
	reply(w, http.StatusOK, 0, "success", next)
}

func (f *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := f.attachments[r.PathValue("id")]
	if out == nil {
		out = []content.Attachment{}
	}
	reply(w, http.StatusOK, 0, "success", out)
}

func (f *fakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer secret" {
		reply(w, http.StatusUnauthorized, 40101, "not allowed to upload", nil)
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		reply(w, http.StatusBadRequest, 40020, err.Error(), nil)
		return
	}
	ref := uploads.AttachmentRef{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			reply(w, http.StatusBadRequest, 40020, err.Error(), nil)
			return
		}
		switch part.FormName() {
		case "id":
			b, _ := io.ReadAll(part)
			ref.ID = string(b)
		case "file":
			n, _ := io.Copy(io.Discard, part)
			ref.FileName = part.FileName()
			ref.MimeType = part.Header.Get("Content-Type")
			ref.FileSizeBytes = n
		}
	}
	if ref.MimeType != "image/png" {
		reply(w, http.StatusBadRequest, 40020, "file: unsupported type", nil)
		return
	}
	ref.Kind = uploads.KindImage
	ref.StorageKey = "attachments/2024/05/01/" + ref.ID + "/" + ref.FileName
	f.mu.Lock()
	f.uploaded = append(f.uploaded, ref.ID)
	f.mu.Unlock()
	reply(w, http.StatusOK, 0, "success", ref)
}
