package client

import (
	"context"

	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/errs"
)

// Target names what an editor writes: an existing entity (ID set) or a new post, comment or reply.
type Target struct {
	Kind     content.Kind
	ID       string
	PostID   string
	ParentID string
}

// Fields are the text fields of a save; nil leaves a field unchanged on edit.
type Fields struct {
	Title    *string
	Body     *string
	Category *string
}

// Editor drives one create or edit flow: upload tracking, attachment reconciliation and the
// two-step submit (parent write, then attachment commit).
type Editor struct {
	api     *Client
	tracker *Tracker
	draft   *Draft
	target  Target
	saved   *content.Entity
}

func NewEditor(api *Client, tracker *Tracker, target Target, existing []content.Attachment) *Editor {
	return &Editor{api: api, tracker: tracker, draft: NewDraft(existing), target: target}
}

func (e *Editor) Tracker() *Tracker { return e.tracker }
func (e *Editor) Draft() *Draft     { return e.draft }

// Select adds files within the remaining attachment slots.
func (e *Editor) Select(files []LocalFile, maxCount int) ([]PendingUpload, []error) {
	return e.tracker.Select(files, e.draft.Count()+e.tracker.ActiveCount(), maxCount)
}

// Submit writes the parent and then commits attachment changes. If the parent was written but
// the commit failed, the returned *errs.PartialSaveError carries the saved entity and
// RetryAttachments repeats only the commit. Submitting again after a partial save sends the
// new fields as an edit of the entity already written.
func (e *Editor) Submit(ctx context.Context, f Fields) (content.Entity, []content.Attachment, error) {
	if n := e.tracker.Unsettled(); n > 0 {
		return content.Entity{}, nil, errs.Validation("attachments", "%d uploads have not finished", n)
	}
	e.draft.MarkUploaded(e.tracker.TakeCompleted()...)

	req := SaveRequest{
		Kind:     e.target.Kind,
		Title:    f.Title,
		Body:     f.Body,
		Category: f.Category,
		PostID:   e.target.PostID,
		ParentID: e.target.ParentID,
	}
	var (
		res SaveResponse
		err error
	)
	if e.target.ID == "" {
		res, err = e.api.CreateContent(ctx, req)
	} else {
		res, err = e.api.UpdateContent(ctx, e.target.Kind, e.target.ID, req)
	}
	if err != nil {
		return content.Entity{}, nil, err
	}
	e.target.ID = res.Entity.ID
	e.saved = &res.Entity
	e.api.cache.InvalidateAfterSave(res.Entity)

	atts, err := e.commit(ctx)
	if err != nil {
		return *e.saved, nil, &errs.PartialSaveError{Saved: *e.saved, Err: err}
	}
	saved := *e.saved
	e.saved = nil
	return saved, atts, nil
}

// RetryAttachments repeats the commit after a partial save.
func (e *Editor) RetryAttachments(ctx context.Context) ([]content.Attachment, error) {
	if e.saved == nil {
		return nil, errs.Conflict("nothing to retry: the last save did not fail halfway")
	}
	atts, err := e.commit(ctx)
	if err != nil {
		return nil, &errs.PartialSaveError{Saved: *e.saved, Err: err}
	}
	e.saved = nil
	return atts, nil
}

func (e *Editor) commit(ctx context.Context) ([]content.Attachment, error) {
	if !e.draft.Dirty() {
		return e.draft.Existing, nil
	}
	ref := e.saved.Ref()
	atts, err := e.api.CommitAttachments(ctx, ref, e.draft.Changes())
	if err != nil {
		return nil, err
	}
	e.draft.Settle(atts)
	e.api.cache.Remove(AttachmentsKey(ref))
	return atts, nil
}

// Cancel abandons the flow: pending edits are dropped and every preview is released.
func (e *Editor) Cancel() {
	e.draft.Discard()
	e.tracker.Close()
}
