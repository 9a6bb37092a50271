package uploads

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/cohort/models"
	"github.com/cppla/cohort/storage"
)

func seedObject(t *testing.T, svc *Service, mem *storage.Memory, id string, expire time.Time, linked bool) {
	t.Helper()
	key := "attachments/k/" + id
	require.NoError(t, mem.Put(context.Background(), key, bytes.NewReader([]byte("x")), 1, "image/png"))
	row := models.UploadedFile{ID: id, UploaderID: 1, StorageKey: key, ExpireAt: expire}
	if linked {
		at := expire
		row.LinkedAt = &at
	}
	require.NoError(t, svc.db.Create(&row).Error)
}

func TestSweepRemovesOnlyExpiredUnlinked(t *testing.T) {
	svc, mem, clock := newService(t)
	sw := NewSweeper(svc.db, mem, nil, nil)
	sw.now = clock.Now

	past := clock.Now().Add(-time.Minute)
	future := clock.Now().Add(time.Hour)
	seedObject(t, svc, mem, "expired", past, false)
	seedObject(t, svc, mem, "linked", past, true)
	seedObject(t, svc, mem, "fresh", future, false)

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"attachments/k/fresh", "attachments/k/linked"}, mem.Keys())

	var ids []string
	svc.db.Model(&models.UploadedFile{}).Order("id").Pluck("id", &ids)
	assert.Equal(t, []string{"fresh", "linked"}, ids)
}

func TestSweepBatches(t *testing.T) {
	svc, mem, clock := newService(t)
	sw := NewSweeper(svc.db, mem, nil, nil)
	sw.now = clock.Now
	sw.batch = 2

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seedObject(t, svc, mem, id, clock.Now().Add(-time.Second), false)
	}
	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Empty(t, mem.Keys())
}

func TestSweepKeepsRowWhenObjectDeleteFails(t *testing.T) {
	svc, mem, clock := newService(t)
	sw := NewSweeper(svc.db, mem, nil, nil)
	sw.now = clock.Now

	seedObject(t, svc, mem, "stuck", clock.Now().Add(-time.Second), false)
	mem.FailDelete = map[string]error{"attachments/k/stuck": errors.New("timeout")}

	n, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var row models.UploadedFile
	require.NoError(t, svc.db.First(&row, "id = ?", "stuck").Error)
	assert.True(t, row.ExpireAt.After(clock.Now()))

	mem.FailDelete = nil
	clock.Advance(2 * time.Minute)
	n, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunStopsWithContext(t *testing.T) {
	svc, mem, _ := newService(t)
	sw := NewSweeper(svc.db, mem, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := sw.Run(ctx, time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
