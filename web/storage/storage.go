// Package storage keeps uploaded images in a billy filesystem under logical
// buckets. Keys have the form "<bucket>/<uuid><ext>".
package storage

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
)

const (
	MaxImageSize = 2 * 1024 * 1024

	PlanBucket   = "plan_img"
	DesignBucket = "design_img"

	URLPrefix = "/media/"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

var (
	ErrImageTooLarge   = errors.New("image is larger than 2 MiB")
	ErrImageExtension  = errors.New("image extension is not allowed")
	ErrImageInvalid    = errors.New("file is not a jpeg, png or bmp image")
	ErrInvalidKey      = errors.New("invalid storage key")
	ErrStoreNotStarted = errors.New("image store is not initialized")
)

// CheckImage validates an upload by its client file name and declared size.
func CheckImage(name string, size int64) error {
	if size > MaxImageSize {
		return ErrImageTooLarge
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return ErrImageExtension
	}
	return nil
}

// Store is a durable image store.
type Store struct {
	fs billy.Filesystem
}

var store *Store

// InitStore installs fs as the process-wide image store.
func InitStore(fs billy.Filesystem) {
	store = &Store{fs: fs}
}

// InitDiskStore installs an image store rooted at dir on the local disk.
func InitDiskStore(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	InitStore(osfs.New(dir))
	return nil
}

// GetStore returns the process-wide image store, or nil before InitStore.
func GetStore() *Store {
	return store
}

// Save writes the image read from r into bucket and returns its key. The write
// is rejected, and nothing is kept, when the content exceeds MaxImageSize or
// does not decode as a jpeg, png or bmp image.
func (s *Store) Save(bucket, originalName string, r io.Reader) (string, error) {
	if s == nil {
		return "", ErrStoreNotStarted
	}
	if bucket != PlanBucket && bucket != DesignBucket {
		return "", fmt.Errorf("unknown bucket %q", bucket)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", ErrImageExtension
	}
	key := path.Join(bucket, uuid.NewString()+ext)

	f, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("storage: create %q: %w", key, err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxImageSize {
		err = ErrImageTooLarge
	}
	if err == nil {
		err = s.checkDecodable(key)
	}
	if err != nil {
		_ = s.fs.Remove(key)
		if errors.Is(err, ErrImageTooLarge) || errors.Is(err, ErrImageInvalid) {
			return "", err
		}
		return "", fmt.Errorf("storage: write %q: %w", key, err)
	}
	return key, nil
}

// Open opens a stored image for reading.
func (s *Store) Open(key string) (billy.File, os.FileInfo, error) {
	if s == nil {
		return nil, nil, ErrStoreNotStarted
	}
	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}
	info, err := s.fs.Stat(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: open %q: %w", key, err)
	}
	return f, info, nil
}

// checkDecodable reads the image header of the stored file.
func (s *Store) checkDecodable(key string) error {
	f, err := s.fs.Open(key)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, _, err := image.DecodeConfig(f); err != nil {
		return ErrImageInvalid
	}
	return nil
}

// Remove deletes the given keys. Missing files and empty keys are ignored.
func (s *Store) Remove(keys ...string) error {
	if s == nil {
		return ErrStoreNotStarted
	}
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if !ValidKey(key) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidKey, key))
			continue
		}
		if err := s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("storage: remove %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ValidKey reports whether key names a file directly inside a known bucket.
func ValidKey(key string) bool {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return false
	}
	bucket, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return false
	}
	return bucket == PlanBucket || bucket == DesignBucket
}

// URL returns the public URL of a stored image.
func URL(key string) string {
	if key == "" {
		return ""
	}
	return URLPrefix + key
}
