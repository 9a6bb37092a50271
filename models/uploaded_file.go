package models

import "time"

// UploadedFile is the ledger of objects written to storage. A row stays unlinked until an
// attachment commit references it; unlinked rows past ExpireAt are swept from storage.
type UploadedFile struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	UploaderID uint       `gorm:"index;not null" json:"uploader_id"`
	StorageKey string     `gorm:"size:1024;not null" json:"storage_key"`
	FileName   string     `gorm:"size:255" json:"file_name"`
	FileSize   int64      `json:"file_size"`
	MimeType   string     `gorm:"size:128" json:"mime_type"`
	Kind       string     `gorm:"size:16" json:"kind"`
	LinkedAt   *time.Time `json:"linked_at"`
	ExpireAt   time.Time  `gorm:"index" json:"expire_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
