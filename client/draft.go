package client

import (
	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/uploads"
)

// Visible merges saved attachments, deletion marks and fresh uploads into the list an editor
// shows: existing minus deleted, followed by uploaded.
func Visible(existing []content.Attachment, deletedIDs []string, uploaded []uploads.AttachmentRef) []uploads.AttachmentRef {
	deleted := make(map[string]struct{}, len(deletedIDs))
	for _, id := range deletedIDs {
		deleted[id] = struct{}{}
	}
	out := make([]uploads.AttachmentRef, 0, len(existing)+len(uploaded))
	for _, a := range existing {
		if _, ok := deleted[a.ID]; ok {
			continue
		}
		out = append(out, a.Ref())
	}
	return append(out, uploaded...)
}

// Draft holds the attachment edits of one editing session until they are committed.
// Nothing here talks to the server.
type Draft struct {
	Existing   []content.Attachment
	DeletedIDs []string
	Uploaded   []Uploaded
}

func NewDraft(existing []content.Attachment) *Draft {
	return &Draft{Existing: existing}
}

func (d *Draft) uploadedRefs() []uploads.AttachmentRef {
	refs := make([]uploads.AttachmentRef, 0, len(d.Uploaded))
	for _, u := range d.Uploaded {
		refs = append(refs, u.Ref)
	}
	return refs
}

func (d *Draft) Visible() []uploads.AttachmentRef {
	return Visible(d.Existing, d.DeletedIDs, d.uploadedRefs())
}

// Count is the number of attachments the parent will have after commit.
func (d *Draft) Count() int {
	return len(d.Visible())
}

// MarkDeleted schedules a saved attachment for removal. Marking twice is a no-op.
// Marking a fresh upload drops it from the draft instead.
func (d *Draft) MarkDeleted(id string) {
	if d.RemoveUploaded(id) {
		return
	}
	for _, v := range d.DeletedIDs {
		if v == id {
			return
		}
	}
	d.DeletedIDs = append(d.DeletedIDs, id)
}

func (d *Draft) MarkUploaded(items ...Uploaded) {
	d.Uploaded = append(d.Uploaded, items...)
}

// RemoveUploaded drops a fresh upload and releases its preview.
func (d *Draft) RemoveUploaded(id string) bool {
	for i, u := range d.Uploaded {
		if u.Ref.ID == id {
			u.Preview.Release()
			d.Uploaded = append(d.Uploaded[:i], d.Uploaded[i+1:]...)
			return true
		}
	}
	return false
}

// Changes is what a commit has to apply.
func (d *Draft) Changes() content.AttachmentChanges {
	return content.AttachmentChanges{
		NewRefs:    d.uploadedRefs(),
		DeletedIDs: append([]string(nil), d.DeletedIDs...),
	}
}

func (d *Draft) Dirty() bool {
	return len(d.Uploaded) > 0 || len(d.DeletedIDs) > 0
}

func (d *Draft) releaseUploads() {
	for _, u := range d.Uploaded {
		u.Preview.Release()
	}
	d.Uploaded = nil
}

// Settle replaces the draft with the committed attachment set.
func (d *Draft) Settle(committed []content.Attachment) {
	d.releaseUploads()
	d.Existing = committed
	d.DeletedIDs = nil
}

// Discard drops every pending edit. Already stored uploads are left for the orphan sweep.
func (d *Draft) Discard() {
	d.releaseUploads()
	d.DeletedIDs = nil
}
