package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Metadata describes a media resource without opening it.
// Callers must check Exists: a missing resource is not an error.
type Metadata struct {
	Exists      bool
	Size        int64
	ContentType string
}

// MediaStore gives bounded, single-pass access to stored media.
type MediaStore interface {
	// Stat reports existence, size and content type of the resource.
	Stat(ctx context.Context, locator string) (Metadata, error)

	// Open returns the bytes in [start, end] (inclusive). The caller owns the
	// returned reader and must Close it on every path, including early exit.
	Open(ctx context.Context, locator string, start, end int64) (io.ReadCloser, error)
}

// CleanLocator normalises separators and rejects any locator that tries to
// climb out of its root. The result is slash-separated and relative.
func CleanLocator(locator string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(locator), `\`, "/")
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: path traversal in locator", ErrInvalidResource)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+normalized), "/")
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty locator", ErrInvalidResource)
	}
	return cleaned, nil
}

// LocalStore serves media from a directory on the local filesystem.
type LocalStore struct {
	root        string
	contentType ContentTyper
}

// NewLocalStore anchors every locator under root. contentType picks the MIME
// table; nil means VideoContentType.
func NewLocalStore(root string, contentType ContentTyper) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root %q: %w", root, err)
	}
	if contentType == nil {
		contentType = VideoContentType
	}
	return &LocalStore{root: abs, contentType: contentType}, nil
}

// Root returns the absolute directory the store is anchored at.
func (s *LocalStore) Root() string {
	return s.root
}

// Resolve maps a locator to an absolute path guaranteed to sit under the root.
func (s *LocalStore) Resolve(locator string) (string, error) {
	cleaned, err := CleanLocator(locator)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: locator escapes media root", ErrInvalidResource)
	}
	return full, nil
}

// Stat implements MediaStore.
func (s *LocalStore) Stat(ctx context.Context, locator string) (Metadata, error) {
	full, err := s.Resolve(locator)
	if err != nil {
		return Metadata{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{Exists: false, Size: 0, ContentType: DefaultFileType}, nil
		}
		return Metadata{}, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return Metadata{Exists: false, Size: 0, ContentType: DefaultFileType}, nil
	}
	ct, err := s.contentType(locator)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Exists: true, Size: info.Size(), ContentType: ct}, nil
}

// Open implements MediaStore.
func (s *LocalStore) Open(ctx context.Context, locator string, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: cannot open [%d, %d]", ErrInvalidRange, start, end)
	}
	full, err := s.Resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open media file: %w", err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek media file: %w", err)
	}
	return &sectionReader{Reader: io.LimitReader(f, end-start+1), closer: f}, nil
}

// sectionReader reads a bounded window and releases the file handle exactly once.
type sectionReader struct {
	io.Reader
	closer io.Closer
	closed bool
}

func (r *sectionReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.closer.Close()
}
