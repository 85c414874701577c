package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Retention decides what happens to an upload once its request is done
type Retention string

const (
	RetentionDelete  Retention = "delete"
	RetentionKeep    Retention = "keep"
	RetentionArchive Retention = "archive"
)

// ParseRetention parses a retention policy name
func ParseRetention(s string) (Retention, error) {
	switch r := Retention(strings.ToLower(strings.TrimSpace(s))); r {
	case RetentionDelete, RetentionKeep, RetentionArchive:
		return r, nil
	}
	return "", fmt.Errorf("unknown upload retention %q", s)
}

// StoredUpload is an upload persisted for the lifetime of one request
type StoredUpload struct {
	Name string
	Path string
	Size int64
}

// UploadStore persists uploads so out-of-process decoders can read them
type UploadStore interface {
	Save(ctx context.Context, originalName string, data []byte) (*StoredUpload, error)
	// Release applies the retention policy. It is safe to call on every
	// exit path, including after a failed Save.
	Release(ctx context.Context, upload *StoredUpload) error
	Retention() Retention
}

type diskUploadStore struct {
	dir       string
	retention Retention
	archiver  BlobArchiver
}

// NewUploadStore creates dir if needed. Archive retention requires an archiver.
func NewUploadStore(dir string, retention Retention, archiver BlobArchiver) (UploadStore, error) {
	if retention == RetentionArchive && archiver == nil {
		return nil, fmt.Errorf("archive retention requires a blob archiver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &diskUploadStore{dir: dir, retention: retention, archiver: archiver}, nil
}

func (s *diskUploadStore) Retention() Retention {
	return s.retention
}

func (s *diskUploadStore) Save(ctx context.Context, originalName string, data []byte) (*StoredUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := uuid.NewString() + safeExt(originalName)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	return &StoredUpload{Name: name, Path: path, Size: int64(len(data))}, nil
}

func (s *diskUploadStore) Release(ctx context.Context, upload *StoredUpload) error {
	if upload == nil {
		return nil
	}
	switch s.retention {
	case RetentionKeep:
		return nil
	case RetentionArchive:
		data, err := os.ReadFile(upload.Path)
		if err != nil {
			return fmt.Errorf("reading upload for archive: %w", err)
		}
		if _, err := s.archiver.Archive(ctx, upload.Name, data); err != nil {
			// Keep the local copy so nothing is lost
			return fmt.Errorf("archiving upload: %w", err)
		}
	}
	if err := os.Remove(upload.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing upload: %w", err)
	}
	return nil
}

// safeExt keeps a short alphanumeric extension from the client file name
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
