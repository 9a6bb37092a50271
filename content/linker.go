package content

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

// AttachmentChanges is the edit applied to a parent's attachment set on save.
type AttachmentChanges struct {
	NewRefs    []uploads.AttachmentRef `json:"newRefs"`
	DeletedIDs []string                `json:"deletedIds"`
}

func (c *AttachmentChanges) Empty() bool {
	return c == nil || (len(c.NewRefs) == 0 && len(c.DeletedIDs) == 0)
}

// Linker commits the attachment set of one parent.
type Linker struct {
	db       *gorm.DB
	maxFiles int
	now      func() time.Time
	log      *zap.Logger
	metrics  *utils.Metrics
}

type LinkerOption func(*Linker)

func WithLinkerClock(now func() time.Time) LinkerOption { return func(l *Linker) { l.now = now } }
func WithLinkerLogger(log *zap.Logger) LinkerOption     { return func(l *Linker) { l.log = log } }
func WithLinkerMetrics(m *utils.Metrics) LinkerOption   { return func(l *Linker) { l.metrics = m } }

func NewLinker(db *gorm.DB, maxFiles int, opts ...LinkerOption) *Linker {
	if maxFiles <= 0 {
		maxFiles = uploads.DefaultLimits().MaxFiles
	}
	l := &Linker{db: db, maxFiles: maxFiles, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Commit applies deletions and additions to a parent's attachments in one transaction and
// returns the resulting set in position order.
func (l *Linker) Commit(ctx context.Context, actorID uint, parent ParentRef, newRefs []uploads.AttachmentRef, deletedIDs []string) ([]Attachment, error) {
	var out []Attachment
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = l.CommitTx(ctx, tx, actorID, parent, newRefs, deletedIDs)
		return err
	})
	l.record(err)
	if err != nil {
		return nil, err
	}
	l.log.Info("attachments committed",
		zap.Uint("actor_id", actorID), zap.String("parent", string(parent.Kind)+":"+parent.ID),
		zap.Int("added", len(newRefs)), zap.Int("deleted", len(deletedIDs)), zap.Int("total", len(out)))
	return out, nil
}

// CommitTx runs a commit inside the caller's transaction.
//
// Attachments listed in deletedIDs that belong to parent are removed first; ids belonging to
// other parents are ignored. Survivors are renumbered 0..k-1 keeping their order, then newRefs
// are appended at k, k+1, ... in array order. Refs already linked to parent are skipped so a
// retried commit does not duplicate rows.
func (l *Linker) CommitTx(ctx context.Context, tx *gorm.DB, actorID uint, parent ParentRef, newRefs []uploads.AttachmentRef, deletedIDs []string) ([]Attachment, error) {
	if err := parent.Validate(); err != nil {
		return nil, err
	}
	tx = tx.WithContext(ctx)

	owner, err := loadEntity(tx, parent.Kind, parent.ID)
	if err != nil {
		return nil, err
	}
	if owner.AuthorID != actorID {
		return nil, errs.Forbidden(actorID, "change attachments of this "+string(parent.Kind))
	}
	if owner.IsDeleted() {
		return nil, errs.Conflict("cannot change attachments of a deleted %s", parent.Kind)
	}

	var current []models.Attachment
	err = tx.Where(parent.column()+" = ?", parent.ID).
		Order("position ASC").Order("created_at ASC").
		Find(&current).Error
	if err != nil {
		return nil, errs.New(err, "failed to load attachments of %s %s", parent.Kind, parent.ID)
	}

	deleteSet := make(map[string]struct{}, len(deletedIDs))
	for _, id := range deletedIDs {
		deleteSet[id] = struct{}{}
	}
	var (
		survivors []models.Attachment
		removed   []string
	)
	linked := make(map[string]struct{}, len(current))
	for _, a := range current {
		if _, gone := deleteSet[a.ID]; gone {
			removed = append(removed, a.ID)
			continue
		}
		survivors = append(survivors, a)
		linked[a.ID] = struct{}{}
	}

	var addIDs []string
	for _, ref := range newRefs {
		if ref.ID == "" {
			return nil, errs.Validation("attachments", "every new attachment needs an id")
		}
		if _, ok := linked[ref.ID]; ok {
			continue
		}
		addIDs = append(addIDs, ref.ID)
	}
	addIDs = utils.Unique(addIDs)

	if total := len(survivors) + len(addIDs); total > l.maxFiles {
		return nil, errs.Validation("attachments", "at most %d files per %s, got %d", l.maxFiles, parent.Kind, total)
	}

	ledger := make(map[string]models.UploadedFile, len(addIDs))
	if len(addIDs) > 0 {
		var files []models.UploadedFile
		err := tx.Where("id IN ?", addIDs).Find(&files).Error
		if err != nil {
			return nil, errs.New(err, "failed to load uploads")
		}
		for _, f := range files {
			ledger[f.ID] = f
		}
	}
	for _, id := range addIDs {
		f, ok := ledger[id]
		if !ok || f.UploaderID != actorID {
			return nil, errs.Validation("attachments", "upload %s not found or expired", id)
		}
		if f.LinkedAt != nil {
			return nil, errs.Validation("attachments", "upload %s is already attached elsewhere", id)
		}
	}

	now := l.now()

	// Delete before insert so positions of outgoing rows never collide with incoming ones.
	if len(removed) > 0 {
		res := tx.Where("id IN ? AND "+parent.column()+" = ?", removed, parent.ID).Delete(&models.Attachment{})
		if res.Error != nil {
			return nil, errs.New(res.Error, "failed to delete attachments")
		}
		// The objects go back to the sweeper.
		err := tx.Model(&models.UploadedFile{}).
			Where("id IN ?", removed).
			Updates(map[string]interface{}{"linked_at": nil, "expire_at": now, "updated_at": now}).Error
		if err != nil {
			return nil, errs.New(err, "failed to release uploads")
		}
	}

	for i := range survivors {
		if survivors[i].Position == i {
			continue
		}
		err := tx.Model(&models.Attachment{}).Where("id = ?", survivors[i].ID).Update("position", i).Error
		if err != nil {
			return nil, errs.New(err, "failed to renumber attachment %s", survivors[i].ID)
		}
		survivors[i].Position = i
	}

	result := make([]Attachment, 0, len(survivors)+len(addIDs))
	for _, a := range survivors {
		result = append(result, fromAttachmentRow(a))
	}
	for j, id := range addIDs {
		row := attachmentRow(parent, ledger[id], len(survivors)+j, now)
		if err := tx.Create(&row).Error; err != nil {
			return nil, errs.New(err, "failed to link upload %s", id)
		}
		result = append(result, fromAttachmentRow(row))
	}
	if len(addIDs) > 0 {
		// Claim the ledger rows; a row swept or linked concurrently fails the whole commit.
		res := tx.Model(&models.UploadedFile{}).
			Where("id IN ? AND linked_at IS NULL", addIDs).
			Updates(map[string]interface{}{"linked_at": now, "updated_at": now})
		if res.Error != nil {
			return nil, errs.New(res.Error, "failed to mark uploads linked")
		}
		if res.RowsAffected != int64(len(addIDs)) {
			return nil, errs.Validation("attachments", "some uploads expired or were attached elsewhere, upload them again")
		}
	}
	return result, nil
}

// List returns a parent's attachments in position order.
func (l *Linker) List(ctx context.Context, parent ParentRef) ([]Attachment, error) {
	if err := parent.Validate(); err != nil {
		return nil, err
	}
	var rows []models.Attachment
	err := l.db.WithContext(ctx).
		Where(parent.column()+" = ?", parent.ID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errs.New(err, "failed to list attachments of %s %s", parent.Kind, parent.ID)
	}
	out := make([]Attachment, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromAttachmentRow(r))
	}
	return out, nil
}

func (l *Linker) record(err error) {
	if l.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	l.metrics.Commits.WithLabelValues(result).Inc()
}
