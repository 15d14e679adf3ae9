package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

// Backend is a filesystem implementation of the bookvault.BlobStore
// interface. Files live under a base directory and are served by the HTTP
// surface, so access URLs are plain same-origin paths with no expiry.
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL prefix for access URLs (e.g. "/files")
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

// checkBase distinguishes a missing base directory (misconfiguration) from a
// missing object.
func (b *Backend) checkBase() error {
	info, err := os.Stat(b.baseDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: base directory %s", bookvault.ErrBackendUnavailable, b.baseDir)
	}
	return nil
}

func (b *Backend) path(objectKey string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(objectKey))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key: %s", objectKey)
	}
	return filepath.Join(b.baseDir, cleaned), nil
}

// Put writes the object, overwriting any previous file at the same key.
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	if err := b.checkBase(); err != nil {
		return err
	}

	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// GetAccessURL returns a same-origin path for the object. The serving
// backend enforces no access window, so there is no expiry. The ttl is
// accepted for interface compatibility and ignored.
func (b *Backend) GetAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (*bookvault.AccessURL, error) {
	if err := b.checkBase(); err != nil {
		return nil, err
	}

	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bookvault.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &bookvault.AccessURL{
		URL:  b.urlPrefix + "/" + objectKey,
		Kind: bookvault.AccessKindDownloadable,
	}, nil
}

// PublicURL returns the same-origin path; on this backend every URL is
// already public.
func (b *Backend) PublicURL(objectKey string) (string, bool) {
	return b.urlPrefix + "/" + objectKey, true
}

// Stat returns the object's metadata. The filesystem keeps no content type,
// so it is inferred from the key's extension.
func (b *Backend) Stat(ctx context.Context, objectKey string) (*bookvault.ObjectInfo, error) {
	if err := b.checkBase(); err != nil {
		return nil, err
	}

	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bookvault.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &bookvault.ObjectInfo{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

// Get reads the object directly from the filesystem.
func (b *Backend) Get(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if err := b.checkBase(); err != nil {
		return nil, err
	}

	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, bookvault.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Remove deletes the object. A missing file is treated as already removed.
func (b *Backend) Remove(ctx context.Context, objectKey string) error {
	if err := b.checkBase(); err != nil {
		return err
	}

	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// List returns the keys of all files under prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkBase(); err != nil {
		return nil, err
	}

	var keys []string
	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return keys, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
