package content

import (
	"context"

	"gorm.io/gorm"
)

// SaveInput describes one user-visible save: the parent write plus its attachment edits.
type SaveInput struct {
	ActorID     uint
	Kind        Kind
	ID          string // empty creates a new entity
	Title       *string
	Body        *string
	Category    *string
	PostID      string // new comments only
	ParentID    string // new replies only
	Attachments *AttachmentChanges
}

type SaveResult struct {
	Entity      Entity       `json:"entity"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Service combines the store and the linker so a save commits in one transaction.
type Service struct {
	Store  *Store
	Linker *Linker
}

func NewService(store *Store, linker *Linker) *Service {
	return &Service{Store: store, Linker: linker}
}

// Save creates or updates the entity and applies its attachment changes atomically.
// Readers see either the previous state or the whole new state.
func (s *Service) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	var (
		res     SaveResult
		notices []notice
	)
	err := s.Store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if in.ID == "" {
			create := CreateInput{
				Kind:     in.Kind,
				AuthorID: in.ActorID,
				PostID:   in.PostID,
				ParentID: in.ParentID,
			}
			if in.Title != nil {
				create.Title = *in.Title
			}
			if in.Body != nil {
				create.Body = *in.Body
			}
			if in.Category != nil {
				create.Category = *in.Category
			}
			res.Entity, notices, err = s.Store.create(tx, create)
		} else {
			res.Entity, err = s.Store.update(tx, in.Kind, in.ID, in.ActorID, UpdateInput{
				Title:    in.Title,
				Body:     in.Body,
				Category: in.Category,
			})
		}
		if err != nil {
			return err
		}
		if in.Attachments == nil {
			return nil
		}
		res.Attachments, err = s.Linker.CommitTx(ctx, tx, in.ActorID, res.Entity.Ref(),
			in.Attachments.NewRefs, in.Attachments.DeletedIDs)
		return err
	})
	if in.Attachments != nil {
		s.Linker.record(err)
	}
	if err != nil {
		return SaveResult{}, err
	}
	s.Store.deliver(ctx, notices)
	return res, nil
}
