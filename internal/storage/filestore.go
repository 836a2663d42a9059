// Package storage keeps uploaded media on a filesystem abstracted by afero.
// Paths handed out by the store are relative to its root; LocalPath maps them
// back to a path usable by external tools such as ffprobe.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	ErrTooLarge = errors.New("file exceeds maximum allowed size")
	ErrNotFound = errors.New("file not found")
)

type FileStore struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewOS stores files under root on the local disk.
func NewOS(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), abs), abs), nil
}

// New wraps an arbitrary afero filesystem. root is only used by LocalPath.
func New(fs afero.Fs, root string) *FileStore {
	return &FileStore{fs: fs, root: root, now: time.Now}
}

func (s *FileStore) Fs() afero.Fs { return s.fs }

// Save writes r to YYYY/MM/DD/<uuid>_<name><ext>. At most limit bytes are
// accepted; on any failure the partial file is removed.
func (s *FileStore) Save(originalName string, r io.Reader, limit int64) (string, int64, error) {
	now := s.now()
	relDir := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())
	if err := s.fs.MkdirAll(relDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	filename := fmt.Sprintf("%s_%s%s", uuid.NewString(), sanitizeName(originalName), ext)
	relPath := filepath.ToSlash(filepath.Join(relDir, filename))

	dst, err := s.fs.Create(relPath)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}

	// One extra byte tells an exact-limit file apart from an oversized one.
	written, copyErr := io.Copy(dst, io.LimitReader(r, limit+1))
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		_ = s.fs.Remove(relPath)
		return "", 0, fmt.Errorf("write file: %w", copyErr)
	case written > limit:
		_ = s.fs.Remove(relPath)
		return "", 0, ErrTooLarge
	case closeErr != nil:
		_ = s.fs.Remove(relPath)
		return "", 0, fmt.Errorf("close file: %w", closeErr)
	}
	return relPath, written, nil
}

// Remove deletes a stored file; a file that is already gone is not an error.
func (s *FileStore) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	if err := s.fs.Remove(relPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", relPath, err)
	}
	return nil
}

func (s *FileStore) Exists(relPath string) (bool, error) {
	return afero.Exists(s.fs, relPath)
}

// Size returns the current size of a stored file.
func (s *FileStore) Size(relPath string) (int64, error) {
	info, err := s.fs.Stat(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

func (s *FileStore) LocalPath(relPath string) string {
	if s.root == "" {
		return relPath
	}
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" || name == "_" {
		return "file"
	}
	return name
}
