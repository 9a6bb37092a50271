package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/utils"
)

const sniffLen = 3072

// Input is one file received from a client.
type Input struct {
	ID       string // client-minted id, replaced when not a UUID
	FileName string
	Size     int64
	MimeType string
	Body     io.ReadSeeker
}

// Service is the only server component that writes attachment bytes to storage.
type Service struct {
	db        *gorm.DB
	store     storage.Storage
	limits    Limits
	orphanTTL time.Duration
	now       func() time.Time
	log       *zap.Logger
	metrics   *utils.Metrics
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMetrics(m *utils.Metrics) Option   { return func(s *Service) { s.metrics = m } }

func NewService(db *gorm.DB, store storage.Storage, limits Limits, orphanTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		db:        db,
		store:     store,
		limits:    limits,
		orphanTTL: orphanTTL,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Limits() Limits { return s.limits }

// Upload re-validates the file, checks its real content type, writes it under a fresh key and
// records it in the upload ledger. It never retries.
func (s *Service) Upload(ctx context.Context, uploaderID uint, in Input) (*AttachmentRef, error) {
	kind, err := s.limits.Validate(in.FileName, in.Size, in.MimeType)
	if err != nil {
		s.count("", "rejected")
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &errs.TransportError{FileName: in.FileName, Err: fmt.Errorf("read upload: %w", err)}
	}
	sniffed, sniffedKind, ok := SniffKind(head[:n])
	if !ok || sniffedKind != kind {
		s.count(kind, "rejected")
		s.log.Warn("upload content does not match declared type",
			zap.Uint("uploader_id", uploaderID), zap.String("declared", in.MimeType), zap.String("sniffed", sniffed))
		return nil, errs.Validation("file", "%q content does not match its declared type %q", in.FileName, in.MimeType)
	}
	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return nil, &errs.TransportError{FileName: in.FileName, Err: fmt.Errorf("rewind upload: %w", err)}
	}

	id := in.ID
	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
	} else {
		id = uuid.NewString()
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.UploadedFile{}).Where("id = ?", id).Count(&existing).Error; err != nil {
		return nil, errs.New(err, "failed to check upload %s", id)
	}
	if existing > 0 {
		s.count(kind, "rejected")
		return nil, errs.Conflict("upload %s already exists", id)
	}

	now := s.now()
	key := StorageKey(now, id, in.FileName)
	if err := s.store.Put(ctx, key, in.Body, in.Size, in.MimeType); err != nil {
		s.count(kind, "failed")
		return nil, &errs.TransportError{FileName: in.FileName, Err: err}
	}

	row := models.UploadedFile{
		ID:         id,
		UploaderID: uploaderID,
		StorageKey: key,
		FileName:   in.FileName,
		FileSize:   in.Size,
		MimeType:   in.MimeType,
		Kind:       string(kind),
		ExpireAt:   now.Add(s.orphanTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.log.Error("failed to remove object after ledger write failed", zap.String("key", key), zap.Error(derr))
		}
		s.count(kind, "failed")
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("upload %s already exists", id)
		}
		return nil, errs.New(err, "failed to record upload %s", id)
	}

	s.count(kind, "ok")
	if s.metrics != nil {
		s.metrics.UploadBytes.Add(float64(in.Size))
	}
	s.log.Info("file uploaded", zap.Uint("uploader_id", uploaderID), zap.String("id", id),
		zap.String("key", key), zap.Int64("size", in.Size))

	return &AttachmentRef{
		ID:            id,
		StorageKey:    key,
		Kind:          kind,
		FileName:      in.FileName,
		FileSizeBytes: in.Size,
		MimeType:      in.MimeType,
	}, nil
}

func (s *Service) count(kind Kind, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Uploads.WithLabelValues(string(kind), result).Inc()
}
