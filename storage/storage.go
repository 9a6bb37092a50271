// Package storage is the durable object store behind attachment uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cppla/cohort/config"
)

// Storage writes, deletes and links to stored objects by key.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New builds the backend selected in configuration.
func New(ctx context.Context, cfg config.AppConfig) (Storage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3(ctx, S3Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	case "local", "":
		return NewLocal(cfg.LocalUploadDir, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

const signConcurrency = 8

// SignURLs resolves many keys at once. The first failure cancels the rest.
func SignURLs(ctx context.Context, st Storage, keys []string, ttl time.Duration) (map[string]string, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			url, err := st.SignedURL(gctx, key, ttl)
			if err != nil {
				return fmt.Errorf("sign %s: %w", key, err)
			}
			mu.Lock()
			out[key] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
