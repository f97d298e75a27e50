package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrExtension = errors.New("file extension not allowed")

var allowed = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// AllowedImage reports whether filename has a png, jpg or jpeg extension, ignoring case.
func AllowedImage(filename string) bool {
	_, ok := allowed[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ImageStore keeps uploaded product images on disk under opaque keys.
type ImageStore struct {
	Dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{Dir: dir}, nil
}

// Save copies r to a fresh key derived from filename's extension and returns the key.
func (s *ImageStore) Save(filename string, r io.Reader) (string, error) {
	if !AllowedImage(filename) {
		return "", fmt.Errorf("%w: %q", ErrExtension, filename)
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))

	f, err := os.OpenFile(filepath.Join(s.Dir, key), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close image: %w", err)
	}
	return key, nil
}

// Remove deletes the file for key. Missing files are not an error.
func (s *ImageStore) Remove(key string) error {
	if key == "" || key != filepath.Base(key) {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
