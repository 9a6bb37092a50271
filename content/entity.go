// Package content manages posts, comments and the attachments linked to them.
package content

import (
	"encoding/json"
	"time"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/uploads"
)

type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPost, KindComment:
		return Kind(s), nil
	}
	return "", errs.Validation("kind", "must be post or comment, got %q", s)
}

// ParentRef points at exactly one post or comment. At the storage boundary it becomes one of
// the two nullable post_id / comment_id columns.
type ParentRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func PostRef(id string) ParentRef    { return ParentRef{Kind: KindPost, ID: id} }
func CommentRef(id string) ParentRef { return ParentRef{Kind: KindComment, ID: id} }

func (p ParentRef) Validate() error {
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	if p.ID == "" {
		return errs.Validation("parentId", "is required")
	}
	return nil
}

func (p ParentRef) column() string {
	if p.Kind == KindPost {
		return "post_id"
	}
	return "comment_id"
}

// Lifecycle is either Active or Deleted.
type Lifecycle interface {
	isLifecycle()
}

type Active struct{}

type Deleted struct {
	At time.Time
}

func (Active) isLifecycle()  {}
func (Deleted) isLifecycle() {}

func lifecycleOf(deletedAt *time.Time) Lifecycle {
	if deletedAt == nil {
		return Active{}
	}
	return Deleted{At: *deletedAt}
}

// Entity is a post or a comment.
type Entity struct {
	ID        string
	Kind      Kind
	AuthorID  uint
	Author    *models.Author
	PostID    string // comments only
	ParentID  string // replies only
	Title     string // posts only
	Body      string
	Category  string // posts only
	IsPinned  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	State     Lifecycle
}

func (e Entity) IsDeleted() bool {
	_, ok := e.State.(Deleted)
	return ok
}

func (e Entity) DeletedAt() *time.Time {
	if d, ok := e.State.(Deleted); ok {
		at := d.At
		return &at
	}
	return nil
}

// Edited reports whether the entity changed noticeably after creation. Display only.
func (e Entity) Edited() bool {
	return e.UpdatedAt.Sub(e.CreatedAt) > time.Second
}

// Edit applies a change to an active entity. Deleted entities are immutable.
func (e *Entity) Edit(in UpdateInput, at time.Time) error {
	if d, ok := e.State.(Deleted); ok {
		return errs.Conflict("cannot edit a deleted %s (deleted at %s)", e.Kind, d.At.Format(time.RFC3339))
	}
	if in.Body != nil {
		e.Body = *in.Body
	}
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if !at.After(e.UpdatedAt) {
		at = e.UpdatedAt.Add(time.Millisecond)
	}
	e.UpdatedAt = at
	return nil
}

func (e Entity) Ref() ParentRef {
	return ParentRef{Kind: e.Kind, ID: e.ID}
}

type entityJSON struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	AuthorID  uint           `json:"authorId"`
	Author    *models.Author `json:"author,omitempty"`
	PostID    string         `json:"postId,omitempty"`
	ParentID  string         `json:"parentId,omitempty"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body"`
	Category  string         `json:"category,omitempty"`
	IsPinned  bool           `json:"isPinned"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt *time.Time     `json:"deletedAt"`
	Edited    bool           `json:"edited"`
}

func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityJSON{
		ID:        e.ID,
		Kind:      e.Kind,
		AuthorID:  e.AuthorID,
		Author:    e.Author,
		PostID:    e.PostID,
		ParentID:  e.ParentID,
		Title:     e.Title,
		Body:      e.Body,
		Category:  e.Category,
		IsPinned:  e.IsPinned,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		DeletedAt: e.DeletedAt(),
		Edited:    e.Edited(),
	})
}

func (e *Entity) UnmarshalJSON(b []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Entity{
		ID:        raw.ID,
		Kind:      raw.Kind,
		AuthorID:  raw.AuthorID,
		Author:    raw.Author,
		PostID:    raw.PostID,
		ParentID:  raw.ParentID,
		Title:     raw.Title,
		Body:      raw.Body,
		Category:  raw.Category,
		IsPinned:  raw.IsPinned,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		State:     lifecycleOf(raw.DeletedAt),
	}
	return nil
}

func fromPost(p models.Post) Entity {
	e := Entity{
		ID:        p.ID,
		Kind:      KindPost,
		AuthorID:  p.UserID,
		Title:     p.Title,
		Body:      p.Content,
		Category:  p.Category,
		IsPinned:  p.IsPinned,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		State:     lifecycleOf(p.DeletedAt),
	}
	if p.User.ID != 0 {
		a := p.User.Author()
		e.Author = &a
	}
	return e
}

func fromComment(c models.Comment) Entity {
	e := Entity{
		ID:        c.ID,
		Kind:      KindComment,
		AuthorID:  c.UserID,
		PostID:    c.PostID,
		Body:      c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		State:     lifecycleOf(c.DeletedAt),
	}
	if c.ParentCommentID != nil {
		e.ParentID = *c.ParentCommentID
	}
	if c.User.ID != 0 {
		a := c.User.Author()
		e.Author = &a
	}
	return e
}

// Attachment is a stored file linked to one parent.
type Attachment struct {
	ID            string       `json:"id"`
	Parent        ParentRef    `json:"parent"`
	Kind          uploads.Kind `json:"kind"`
	StorageKey    string       `json:"storageKey"`
	FileName      string       `json:"fileName"`
	FileSizeBytes int64        `json:"fileSizeBytes"`
	MimeType      string       `json:"mimeType"`
	Position      int          `json:"position"`
	CreatedAt     time.Time    `json:"createdAt"`
}

func (a Attachment) Ref() uploads.AttachmentRef {
	return uploads.AttachmentRef{
		ID:            a.ID,
		StorageKey:    a.StorageKey,
		Kind:          a.Kind,
		FileName:      a.FileName,
		FileSizeBytes: a.FileSizeBytes,
		MimeType:      a.MimeType,
	}
}

func fromAttachmentRow(row models.Attachment) Attachment {
	parent := ParentRef{Kind: KindComment}
	if row.PostID != nil {
		parent = PostRef(*row.PostID)
	} else if row.CommentID != nil {
		parent.ID = *row.CommentID
	}
	return Attachment{
		ID:            row.ID,
		Parent:        parent,
		Kind:          uploads.Kind(row.Type),
		StorageKey:    row.FileKey,
		FileName:      row.FileName,
		FileSizeBytes: row.FileSize,
		MimeType:      row.MimeType,
		Position:      row.Position,
		CreatedAt:     row.CreatedAt,
	}
}

func attachmentRow(parent ParentRef, f models.UploadedFile, position int, at time.Time) models.Attachment {
	row := models.Attachment{
		ID:        f.ID,
		Type:      f.Kind,
		FileKey:   f.StorageKey,
		FileName:  f.FileName,
		FileSize:  f.FileSize,
		MimeType:  f.MimeType,
		Position:  position,
		CreatedAt: at,
	}
	id := parent.ID
	if parent.Kind == KindPost {
		row.PostID = &id
	} else {
		row.CommentID = &id
	}
	return row
}
