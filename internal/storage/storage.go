// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage stores uploaded images and documents. Files go to an
// S3-compatible bucket in production and to a local directory in
// development; both sit behind the FileStore interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursepress/internal/apperr"
)

// MaxUploadSize is the largest accepted upload.
const MaxUploadSize = 20 << 20 // 20 MB

// FileStore is a place uploaded files can be written to and served from.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// allowedTypes lists the MIME types accepted for upload, mapped to the
// extension used when the original file name has none.
var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
}

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Uploader validates uploads and writes them to a FileStore.
type Uploader struct {
	store   FileStore
	timeout time.Duration
	now     func() time.Time
}

// NewUploader creates an uploader writing to store. Every store call is
// bounded by timeout.
func NewUploader(store FileStore, timeout time.Duration) *Uploader {
	return &Uploader{store: store, timeout: timeout, now: time.Now}
}

// Save sniffs the content type of body, checks it against the allow list
// and stores it under media/YYYY/MM/<uuid><ext>.
func (u *Uploader) Save(ctx context.Context, filename string, body io.ReadSeeker, size int64) (*Object, error) {
	if size <= 0 {
		return nil, apperr.Invalid("file", "is empty")
	}
	if size > MaxUploadSize {
		return nil, apperr.Invalid("file", fmt.Sprintf("must be at most %d MB", MaxUploadSize>>20))
	}

	contentType, err := sniff(filename, body)
	if err != nil {
		return nil, err
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return nil, apperr.Invalid("file", fmt.Sprintf("type %q is not allowed", contentType))
	}
	if orig := strings.ToLower(filepath.Ext(filename)); orig != "" && extMatches(contentType, orig) {
		ext = orig
	}

	now := u.now()
	key := fmt.Sprintf("media/%d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), ext)

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.store.Put(ctx, key, contentType, body, size); err != nil {
		return nil, classify(err, "store upload")
	}

	slog.Info("file uploaded", "key", key, "type", contentType, "size", size)
	return &Object{Key: key, URL: u.store.URL(key), ContentType: contentType, Size: size}, nil
}

// keyResolver is implemented by stores that can map a public URL back to
// the key it was built from.
type keyResolver interface {
	KeyFromURL(rawURL string) (string, bool)
}

// Delete removes a stored object. ref is either its key or the public URL
// Save returned for it.
func (u *Uploader) Delete(ctx context.Context, ref string) error {
	key := ref
	if kr, ok := u.store.(keyResolver); ok {
		if k, ok := kr.KeyFromURL(ref); ok {
			key = k
		}
	}
	if !ValidKey(key) {
		return apperr.Invalid("path", "is not an uploaded file")
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.store.Delete(ctx, key); err != nil {
		return classify(err, "delete upload")
	}
	return nil
}

// sniff detects the content type from the first 512 bytes and rewinds body.
func sniff(filename string, body io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(body, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apperr.Unexpected(fmt.Errorf("read upload: %w", err))
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", apperr.Unexpected(fmt.Errorf("rewind upload: %w", err))
	}

	contentType, _, _ := strings.Cut(http.DetectContentType(buf[:n]), ";")

	// DetectContentType reports SVGs as XML or plain text.
	if strings.HasSuffix(strings.ToLower(filename), ".svg") &&
		(strings.Contains(contentType, "xml") || contentType == "text/plain") {
		contentType = "image/svg+xml"
	}
	return contentType, nil
}

func extMatches(contentType, ext string) bool {
	switch contentType {
	case "image/jpeg":
		return ext == ".jpg" || ext == ".jpeg"
	default:
		return allowedTypes[contentType] == ext
	}
}

var keyPattern = regexp.MustCompile(`^media/\d{4}/\d{2}/[0-9a-f-]{36}\.[a-z0-9]{2,5}$`)

// ValidKey reports whether key has the shape of a key produced by Save.
// Anything else, including path traversal, is refused.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && path.Clean(key) == key
}

func classify(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(fmt.Errorf("%s: %w", op, err))
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Unexpected(fmt.Errorf("%s: %w", op, err))
}
