package content

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/utils"
)

const (
	MaxPostBodyRunes    = 10000
	MaxCommentBodyRunes = 5000
	MaxTitleRunes       = 200
	MaxReplyDepth       = 3

	DefaultPageSize = 20
	MaxPageSize     = 100

	DefaultCategory = "general"
)

var Categories = []string{"general", "question", "discussion", "announcement", "feedback", "showcase"}

func validCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Authorizer answers whether a user holds the admin capability.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

type CreateInput struct {
	Kind     Kind
	AuthorID uint
	Title    string
	Body     string
	Category string
	PostID   string // comments: the post commented on
	ParentID string // replies: the comment replied to
}

// UpdateInput holds the fields to change; nil leaves a field as is.
type UpdateInput struct {
	Title    *string
	Body     *string
	Category *string
}

type ListOptions struct {
	Category string
	Limit    int
	Offset   int
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Page is one offset-paginated slice of a listing. Rows inserted while a client pages through a
// listing can shift pages, so a row may be skipped or seen twice.
type Page struct {
	Items  []Entity `json:"items"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// Store creates, edits and soft-deletes posts and comments.
type Store struct {
	db       *gorm.DB
	authz    Authorizer
	notifier notify.Notifier
	now      func() time.Time
	log      *zap.Logger
}

type StoreOption func(*Store)

func WithStoreClock(now func() time.Time) StoreOption { return func(s *Store) { s.now = now } }
func WithStoreLogger(l *zap.Logger) StoreOption       { return func(s *Store) { s.log = l } }

func NewStore(db *gorm.DB, authz Authorizer, notifier notify.Notifier, opts ...StoreOption) *Store {
	s := &Store{db: db, authz: authz, notifier: notifier, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

type notice struct {
	userID uint
	msg    notify.Message
}

// deliver sends notices best-effort. A failed notification never fails the write that caused it.
func (s *Store) deliver(ctx context.Context, notices []notice) {
	if s.notifier == nil {
		return
	}
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n.userID, n.msg); err != nil {
			s.log.Warn("notification failed", zap.Uint("user_id", n.userID), zap.String("kind", n.msg.Kind), zap.Error(err))
		}
	}
}

func cleanBody(kind Kind, body string) (string, error) {
	limit := MaxPostBodyRunes
	if kind == KindComment {
		limit = MaxCommentBodyRunes
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errs.Validation("body", "is required")
	}
	if n := utf8.RuneCountInString(body); n > limit {
		return "", errs.Validation("body", "must be at most %d characters, got %d", limit, n)
	}
	clean := strings.TrimSpace(utils.Sanitize(body))
	if clean == "" {
		return "", errs.Validation("body", "has no visible content")
	}
	return clean, nil
}

func cleanTitle(title string) (string, error) {
	title = utils.SanitizePlain(title)
	if n := utf8.RuneCountInString(title); n > MaxTitleRunes {
		return "", errs.Validation("title", "must be at most %d characters, got %d", MaxTitleRunes, n)
	}
	return title, nil
}

func cleanCategory(category string) (string, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return DefaultCategory, nil
	}
	if !validCategory(category) {
		return "", errs.Validation("category", "must be one of %s", strings.Join(Categories, ", "))
	}
	return category, nil
}

// Create validates and stores a new post or comment, then notifies the author being replied to.
func (s *Store) Create(ctx context.Context, in CreateInput) (Entity, error) {
	var (
		e       Entity
		notices []notice
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		e, notices, err = s.create(tx, in)
		return err
	})
	if err != nil {
		return Entity{}, err
	}
	s.deliver(ctx, notices)
	return e, nil
}

func (s *Store) create(tx *gorm.DB, in CreateInput) (Entity, []notice, error) {
	if in.AuthorID == 0 {
		return Entity{}, nil, errs.Validation("authorId", "is required")
	}
	body, err := cleanBody(in.Kind, in.Body)
	if err != nil {
		return Entity{}, nil, err
	}
	now := s.now()

	switch in.Kind {
	case KindPost:
		title, err := cleanTitle(in.Title)
		if err != nil {
			return Entity{}, nil, err
		}
		category, err := cleanCategory(in.Category)
		if err != nil {
			return Entity{}, nil, err
		}
		post := models.Post{
			ID:        uuid.NewString(),
			UserID:    in.AuthorID,
			Title:     title,
			Content:   body,
			Category:  category,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
			return Entity{}, nil, errs.New(err, "failed to create post")
		}
		return fromPost(post), nil, nil

	case KindComment:
		if in.PostID == "" {
			return Entity{}, nil, errs.Validation("postId", "is required")
		}
		post, err := loadPost(tx, in.PostID)
		if err != nil {
			return Entity{}, nil, err
		}
		if post.DeletedAt != nil {
			return Entity{}, nil, errs.NotFound("post", in.PostID)
		}

		var parent *models.Comment
		if in.ParentID != "" {
			p, err := loadComment(tx, in.ParentID)
			if err != nil {
				return Entity{}, nil, err
			}
			if p.DeletedAt != nil || p.PostID != post.ID {
				return Entity{}, nil, errs.NotFound("comment", in.ParentID)
			}
			depth, err := depthOf(tx, p)
			if err != nil {
				return Entity{}, nil, err
			}
			if depth+1 > MaxReplyDepth {
				return Entity{}, nil, errs.Validation("parentId", "replies can be nested at most %d levels deep", MaxReplyDepth)
			}
			parent = &p
		}

		c := models.Comment{
			ID:        uuid.NewString(),
			PostID:    post.ID,
			UserID:    in.AuthorID,
			Content:   body,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if parent != nil {
			pid := parent.ID
			c.ParentCommentID = &pid
		}
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return Entity{}, nil, errs.New(err, "failed to create comment")
		}

		var notices []notice
		if parent != nil {
			if parent.UserID != in.AuthorID {
				notices = append(notices, notice{userID: parent.UserID, msg: notify.Message{
					Kind:        notify.KindCommentReply,
					Title:       "New reply to your comment",
					Content:     body,
					RelatedID:   post.ID,
					RelatedType: string(KindPost),
				}})
			}
		} else if post.UserID != in.AuthorID {
			notices = append(notices, notice{userID: post.UserID, msg: notify.Message{
				Kind:        notify.KindPostReply,
				Title:       "New comment on your post",
				Content:     body,
				RelatedID:   post.ID,
				RelatedType: string(KindPost),
			}})
		}
		return fromComment(c), notices, nil
	}
	return Entity{}, nil, errs.Validation("kind", "must be post or comment, got %q", in.Kind)
}

// depthOf counts the ancestors of a comment: 0 for a top-level comment.
func depthOf(tx *gorm.DB, c models.Comment) (int, error) {
	depth := 0
	for c.ParentCommentID != nil && depth <= MaxReplyDepth {
		parent, err := loadComment(tx, *c.ParentCommentID)
		if err != nil {
			if errs.IsNotFound(err) {
				return depth + 1, nil
			}
			return 0, err
		}
		depth++
		c = parent
	}
	return depth, nil
}

func loadPost(tx *gorm.DB, id string) (models.Post, error) {
	var p models.Post
	err := tx.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, errs.NotFound("post", id)
	}
	if err != nil {
		return p, errs.New(err, "failed to load post %s", id)
	}
	return p, nil
}

func loadComment(tx *gorm.DB, id string) (models.Comment, error) {
	var c models.Comment
	err := tx.Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c, errs.NotFound("comment", id)
	}
	if err != nil {
		return c, errs.New(err, "failed to load comment %s", id)
	}
	return c, nil
}

// loadEntity loads a post or comment including tombstones.
func loadEntity(tx *gorm.DB, kind Kind, id string) (Entity, error) {
	switch kind {
	case KindPost:
		p, err := loadPost(tx.Preload("User"), id)
		if err != nil {
			return Entity{}, err
		}
		return fromPost(p), nil
	case KindComment:
		c, err := loadComment(tx.Preload("User"), id)
		if err != nil {
			return Entity{}, err
		}
		return fromComment(c), nil
	}
	return Entity{}, errs.Validation("kind", "must be post or comment, got %q", kind)
}

// Update edits an entity owned by actorID. UpdatedAt always moves strictly forward.
func (s *Store) Update(ctx context.Context, kind Kind, id string, actorID uint, in UpdateInput) (Entity, error) {
	var e Entity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		e, err = s.update(tx, kind, id, actorID, in)
		return err
	})
	return e, err
}

func (s *Store) update(tx *gorm.DB, kind Kind, id string, actorID uint, in UpdateInput) (Entity, error) {
	e, err := loadEntity(tx, kind, id)
	if err != nil {
		return Entity{}, err
	}
	if e.AuthorID != actorID {
		return Entity{}, errs.Forbidden(actorID, "edit this "+string(kind))
	}
	if at := e.DeletedAt(); at != nil {
		return Entity{}, errs.Conflict("cannot edit a deleted %s (deleted at %s)", kind, at.Format(time.RFC3339))
	}

	var clean UpdateInput
	if in.Body != nil {
		body, err := cleanBody(kind, *in.Body)
		if err != nil {
			return Entity{}, err
		}
		clean.Body = &body
	}
	if kind == KindPost {
		if in.Title != nil {
			title, err := cleanTitle(*in.Title)
			if err != nil {
				return Entity{}, err
			}
			clean.Title = &title
		}
		if in.Category != nil {
			category, err := cleanCategory(*in.Category)
			if err != nil {
				return Entity{}, err
			}
			clean.Category = &category
		}
	} else if in.Title != nil || in.Category != nil {
		return Entity{}, errs.Validation("title", "comments have no title or category")
	}

	if err := e.Edit(clean, s.now()); err != nil {
		return Entity{}, err
	}

	updates := map[string]interface{}{"updated_at": e.UpdatedAt}
	if clean.Body != nil {
		updates["content"] = e.Body
	}
	var model interface{} = &models.Comment{}
	if kind == KindPost {
		model = &models.Post{}
		if clean.Title != nil {
			updates["title"] = e.Title
		}
		if clean.Category != nil {
			updates["category"] = e.Category
		}
	}
	if err := tx.Model(model).Where("id = ?", id).Updates(updates).Error; err != nil {
		return Entity{}, errs.New(err, "failed to update %s %s", kind, id)
	}
	return e, nil
}

// SoftDelete tombstones an entity owned by actorID. Deleting twice returns the first deletion.
func (s *Store) SoftDelete(ctx context.Context, kind Kind, id string, actorID uint) (Entity, error) {
	var e Entity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		e, err = loadEntity(tx, kind, id)
		if err != nil {
			return err
		}
		if e.AuthorID != actorID {
			return errs.Forbidden(actorID, "delete this "+string(kind))
		}
		if e.IsDeleted() {
			return nil
		}
		at := s.now()
		var model interface{} = &models.Comment{}
		if kind == KindPost {
			model = &models.Post{}
		}
		res := tx.Model(model).Where("id = ? AND deleted_at IS NULL", id).Update("deleted_at", at)
		if res.Error != nil {
			return errs.New(res.Error, "failed to delete %s %s", kind, id)
		}
		e.State = Deleted{At: at}
		return nil
	})
	if err != nil {
		return Entity{}, err
	}
	return e, nil
}

// SetPinned pins or unpins a post. Only admins may do this; ownership does not matter.
func (s *Store) SetPinned(ctx context.Context, postID string, actorID uint, pinned bool) (Entity, error) {
	if s.authz == nil {
		return Entity{}, errs.Forbidden(actorID, "pin posts")
	}
	admin, err := s.authz.IsAdmin(ctx, actorID)
	if err != nil {
		return Entity{}, errs.New(err, "failed to check admin capability for user %d", actorID)
	}
	if !admin {
		return Entity{}, errs.Forbidden(actorID, "pin posts")
	}

	var e Entity
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		e, err = loadEntity(tx, KindPost, postID)
		if err != nil {
			return err
		}
		if e.IsDeleted() {
			return errs.Conflict("cannot pin a deleted post")
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Update("is_pinned", pinned).Error; err != nil {
			return errs.New(err, "failed to pin post %s", postID)
		}
		e.IsPinned = pinned
		return nil
	})
	if err != nil {
		return Entity{}, err
	}
	return e, nil
}

// Get returns a live entity.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (Entity, error) {
	e, err := loadEntity(s.db.WithContext(ctx), kind, id)
	if err != nil {
		return Entity{}, err
	}
	if e.IsDeleted() {
		return Entity{}, errs.NotFound(string(kind), id)
	}
	return e, nil
}

// ListForContainer lists live top-level entities, pinned first then newest first.
// For posts the container is a user id (empty lists every post); for comments it is the post id.
func (s *Store) ListForContainer(ctx context.Context, kind Kind, containerID string, opts ListOptions) (Page, error) {
	opts = opts.normalized()
	db := s.db.WithContext(ctx)
	page := Page{Items: []Entity{}, Limit: opts.Limit, Offset: opts.Offset}

	switch kind {
	case KindPost:
		q := db.Model(&models.Post{}).Where("deleted_at IS NULL")
		if containerID != "" {
			uid, err := strconv.ParseUint(containerID, 10, 64)
			if err != nil {
				return Page{}, errs.Validation("userId", "must be numeric")
			}
			q = q.Where("user_id = ?", uint(uid))
		}
		if opts.Category != "" {
			if !validCategory(opts.Category) {
				return Page{}, errs.Validation("category", "must be one of %s", strings.Join(Categories, ", "))
			}
			q = q.Where("category = ?", opts.Category)
		}
		q = q.Session(&gorm.Session{})
		if err := q.Count(&page.Total).Error; err != nil {
			return Page{}, errs.New(err, "failed to count posts")
		}
		var rows []models.Post
		err := q.Preload("User").
			Order("is_pinned DESC").Order("created_at DESC").Order("id DESC").
			Limit(opts.Limit).Offset(opts.Offset).
			Find(&rows).Error
		if err != nil {
			return Page{}, errs.New(err, "failed to list posts")
		}
		for _, r := range rows {
			page.Items = append(page.Items, fromPost(r))
		}
		return page, nil

	case KindComment:
		post, err := loadPost(db, containerID)
		if err != nil {
			return Page{}, err
		}
		if post.DeletedAt != nil {
			return Page{}, errs.NotFound("post", containerID)
		}
		q := db.Model(&models.Comment{}).
			Where("post_id = ? AND parent_comment_id IS NULL AND deleted_at IS NULL", containerID).
			Session(&gorm.Session{})
		if err := q.Count(&page.Total).Error; err != nil {
			return Page{}, errs.New(err, "failed to count comments")
		}
		var rows []models.Comment
		err = q.Preload("User").
			Order("created_at DESC").Order("id DESC").
			Limit(opts.Limit).Offset(opts.Offset).
			Find(&rows).Error
		if err != nil {
			return Page{}, errs.New(err, "failed to list comments")
		}
		for _, r := range rows {
			page.Items = append(page.Items, fromComment(r))
		}
		return page, nil
	}
	return Page{}, errs.Validation("kind", "must be post or comment, got %q", kind)
}

// ListReplies returns every live reply to a comment, newest first. Depth is capped at creation,
// which keeps this listing small enough to skip pagination.
func (s *Store) ListReplies(ctx context.Context, parentID string) ([]Entity, error) {
	var rows []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("parent_comment_id = ? AND deleted_at IS NULL", parentID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.New(err, "failed to list replies of %s", parentID)
	}
	out := make([]Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromComment(r))
	}
	return out, nil
}

// CountComments counts live comments and replies under a post.
func (s *Store) CountComments(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND deleted_at IS NULL", postID).
		Count(&n).Error
	if err != nil {
		return 0, errs.New(err, "failed to count comments of %s", postID)
	}
	return n, nil
}
