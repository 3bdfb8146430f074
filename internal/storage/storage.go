package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageStore archives raw uploads and returns a URL for the stored object.
type ImageStore interface {
	Put(ctx context.Context, userID, filename string, data []byte) (string, error)
}

// imageKey builds food_images/<user>/<yyyy/mm/dd>/<uuid>.<ext>.
func imageKey(userID, filename string, now time.Time) string {
	return path.Join("food_images", sanitizeSegment(userID), now.UTC().Format("2006/01/02"),
		uuid.NewString()+"."+extension(filename))
}

// extension keeps jpg, jpeg and png. Anything else is stored as jpg.
func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "jpg", "jpeg", "png":
		return ext
	default:
		return "jpg"
	}
}

func contentType(ext string) string {
	if ext == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// sanitizeSegment makes the user id safe as a single path segment.
func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "anonymous"
	}
	return s
}

// LocalStore writes images below a base directory. It serves deployments
// without a bucket and the CLI.
type LocalStore struct {
	basePath string
	now      func() time.Time
}

// NewLocalStore creates a new LocalStore and ensures the base directory exists.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &LocalStore{basePath: basePath, now: time.Now}, nil
}

// Put stores data and returns a file:// URL.
func (s *LocalStore) Put(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := imageKey(userID, filename, s.now())
	filePath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		abs = filePath
	}
	return "file://" + filepath.ToSlash(abs), nil
}
