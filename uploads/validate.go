// Package uploads validates, stores and accounts for attachment files.
package uploads

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/errs"
)

// Kind is the media category of an attachment, derived from its MIME type.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var allowedMIMETypes = map[string]Kind{
	"image/jpeg":      KindImage,
	"image/png":       KindImage,
	"image/gif":       KindImage,
	"image/webp":      KindImage,
	"video/mp4":       KindVideo,
	"video/webm":      KindVideo,
	"video/quicktime": KindVideo,
}

// AllowedMIMETypes lists the accepted types in stable order.
func AllowedMIMETypes() []string {
	out := make([]string, 0, len(allowedMIMETypes))
	for m := range allowedMIMETypes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// KindOf maps an allowed MIME type to its kind. Parameters such as "; charset" are ignored.
func KindOf(mimeType string) (Kind, bool) {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	k, ok := allowedMIMETypes[base]
	return k, ok
}

// AttachmentRef is the durable reference returned by a completed upload.
type AttachmentRef struct {
	ID            string `json:"id"`
	StorageKey    string `json:"storageKey"`
	Kind          Kind   `json:"kind"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
	MimeType      string `json:"mimeType"`
}

// Limits are the per-kind size ceilings and the per-entity file cap.
type Limits struct {
	MaxImageBytes int64 `json:"maxImageBytes"`
	MaxVideoBytes int64 `json:"maxVideoBytes"`
	MaxFiles      int   `json:"maxFiles"`
}

const mib = 1024 * 1024

func DefaultLimits() Limits {
	return Limits{MaxImageBytes: 5 * mib, MaxVideoBytes: 100 * mib, MaxFiles: 10}
}

func LimitsFromConfig(cfg config.AppConfig) Limits {
	l := DefaultLimits()
	if cfg.MaxImageMB > 0 {
		l.MaxImageBytes = cfg.MaxImageBytes()
	}
	if cfg.MaxVideoMB > 0 {
		l.MaxVideoBytes = cfg.MaxVideoBytes()
	}
	if cfg.MaxFilesPerEntity > 0 {
		l.MaxFiles = cfg.MaxFilesPerEntity
	}
	return l
}

// Validate checks a file's declared type and size and returns its kind.
func (l Limits) Validate(name string, size int64, mimeType string) (Kind, error) {
	kind, ok := KindOf(mimeType)
	if !ok {
		return "", errs.Validation("file", "%q has unsupported type %q", name, mimeType)
	}
	if size <= 0 {
		return "", errs.Validation("file", "%q is empty", name)
	}
	ceiling := l.MaxImageBytes
	if kind == KindVideo {
		ceiling = l.MaxVideoBytes
	}
	if size > ceiling {
		return "", errs.Validation("file", "%q is %s, the %s limit is %s", name, humanSize(size), kind, humanSize(ceiling))
	}
	return kind, nil
}

// Validate checks against the default limits.
func Validate(name string, size int64, mimeType string) (Kind, error) {
	return DefaultLimits().Validate(name, size, mimeType)
}

// SniffKind inspects the leading bytes of a file and returns the allowed type they contain.
func SniffKind(head []byte) (string, Kind, bool) {
	for m := mimetype.Detect(head); m != nil; m = m.Parent() {
		if k, ok := KindOf(m.String()); ok {
			return m.String(), k, true
		}
	}
	return "", "", false
}

var reIllegalFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9_.-].
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "unnamed"
	}
	return reIllegalFilenameChars.ReplaceAllString(base, "_")
}

// StorageKey builds attachments/YYYY/MM/DD/<id>/<sanitized filename>.
func StorageKey(at time.Time, id, filename string) string {
	at = at.UTC()
	return fmt.Sprintf("attachments/%04d/%02d/%02d/%s/%s", at.Year(), int(at.Month()), at.Day(), id, SanitizeFilename(filename))
}

func humanSize(n int64) string {
	if n >= mib {
		return fmt.Sprintf("%.1fMB", float64(n)/mib)
	}
	if n >= 1024 {
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%dB", n)
}
