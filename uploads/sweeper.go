package uploads

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/utils"
)

const defaultSweepBatch = 100

// Sweeper deletes uploads that were never linked (or were released) once they expire.
type Sweeper struct {
	db      *gorm.DB
	store   storage.Storage
	batch   int
	now     func() time.Time
	log     *zap.Logger
	metrics *utils.Metrics
}

func NewSweeper(db *gorm.DB, store storage.Storage, log *zap.Logger, metrics *utils.Metrics) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{db: db, store: store, batch: defaultSweepBatch, now: time.Now, log: log, metrics: metrics}
}

// SweepOnce removes every expired unlinked upload, batch by batch, and returns how many went.
// Objects that fail to delete keep their ledger row and are retried on the next sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed := 0
	for {
		var items []models.UploadedFile
		err := s.db.WithContext(ctx).
			Where("linked_at IS NULL AND expire_at <= ?", s.now()).
			Order("expire_at ASC").
			Limit(s.batch).
			Find(&items).Error
		if err != nil {
			return removed, errs.New(err, "failed to list expired uploads")
		}

		progressed := 0
		for _, it := range items {
			ok, err := s.remove(ctx, it)
			if err != nil {
				return removed, err
			}
			if ok {
				progressed++
			}
		}
		removed += progressed
		if len(items) < s.batch || progressed == 0 {
			return removed, nil
		}
	}
}

func (s *Sweeper) remove(ctx context.Context, it models.UploadedFile) (bool, error) {
	// Claim the row first so a concurrent link cannot point at an object we are deleting.
	res := s.db.WithContext(ctx).
		Where("id = ? AND linked_at IS NULL", it.ID).
		Delete(&models.UploadedFile{})
	if res.Error != nil {
		return false, errs.New(res.Error, "failed to claim upload %s", it.ID)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := s.store.Delete(ctx, it.StorageKey); err != nil {
		s.log.Warn("orphan delete failed, will retry", zap.String("key", it.StorageKey), zap.Error(err))
		it.ExpireAt = s.now().Add(time.Minute)
		if rerr := s.db.WithContext(ctx).Create(&it).Error; rerr != nil {
			s.log.Error("failed to restore ledger row", zap.String("id", it.ID), zap.Error(rerr))
		}
		return false, nil
	}

	if s.metrics != nil {
		s.metrics.SweptFiles.Inc()
	}
	s.log.Debug("orphan upload removed", zap.String("id", it.ID), zap.String("key", it.StorageKey))
	return true, nil
}

// Run sweeps every interval until ctx is done. Failed sweeps back off exponentially.
// The returned channel closes once the loop has exited.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		boff := backoff.Backoff{
			Min:    5 * time.Second,
			Max:    interval,
			Factor: 2,
			Jitter: true,
		}
		wait := interval
		for {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			n, err := s.SweepOnce(ctx)
			if err != nil {
				wait = boff.Duration()
				s.log.Error("orphan sweep failed", zap.Error(err), zap.Duration("retrying after", wait))
				continue
			}
			boff.Reset()
			wait = interval
			if n > 0 {
				s.log.Info("orphan sweep finished", zap.Int("removed", n))
			}
		}
	}()
	return done
}
