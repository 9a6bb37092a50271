package content

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
)

const reactionLike = "like"

type ReactionSummary struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

func reactionQuery(tx *gorm.DB, target ParentRef) *gorm.DB {
	return tx.Model(&models.Reaction{}).Where(target.column()+" = ? AND type = ?", target.ID, reactionLike)
}

// ToggleReaction adds the actor's like to a live post or comment, or removes it if present.
func (s *Store) ToggleReaction(ctx context.Context, actorID uint, target ParentRef) (ReactionSummary, error) {
	if err := target.Validate(); err != nil {
		return ReactionSummary{}, err
	}
	var sum ReactionSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := loadEntity(tx, target.Kind, target.ID)
		if err != nil {
			return err
		}
		if e.IsDeleted() {
			return errs.NotFound(string(target.Kind), target.ID)
		}

		var existing models.Reaction
		err = reactionQuery(tx, target).Where("user_id = ?", actorID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&models.Reaction{}, "id = ?", existing.ID).Error; err != nil {
				return errs.New(err, "failed to remove reaction")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			r := models.Reaction{ID: uuid.NewString(), UserID: actorID, Type: reactionLike, CreatedAt: s.now()}
			id := target.ID
			if target.Kind == KindPost {
				r.PostID = &id
			} else {
				r.CommentID = &id
			}
			if err := tx.Create(&r).Error; err != nil {
				return errs.New(err, "failed to add reaction")
			}
			sum.Liked = true
		default:
			return errs.New(err, "failed to load reaction")
		}

		if err := reactionQuery(tx, target).Count(&sum.Count).Error; err != nil {
			return errs.New(err, "failed to count reactions")
		}
		return nil
	})
	if err != nil {
		return ReactionSummary{}, err
	}
	return sum, nil
}

// Reactions summarizes likes on a target from the point of view of viewerID (0 for anonymous).
func (s *Store) Reactions(ctx context.Context, viewerID uint, target ParentRef) (ReactionSummary, error) {
	if err := target.Validate(); err != nil {
		return ReactionSummary{}, err
	}
	var sum ReactionSummary
	db := s.db.WithContext(ctx)
	if err := reactionQuery(db, target).Count(&sum.Count).Error; err != nil {
		return ReactionSummary{}, errs.New(err, "failed to count reactions")
	}
	if viewerID != 0 {
		var mine int64
		if err := reactionQuery(db, target).Where("user_id = ?", viewerID).Count(&mine).Error; err != nil {
			return ReactionSummary{}, errs.New(err, "failed to load reaction")
		}
		sum.Liked = mine > 0
	}
	return sum, nil
}
