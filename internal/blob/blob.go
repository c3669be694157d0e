// Package blob stores uploaded resumes and videos on the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

var ErrInvalidRef = errors.New("invalid blob reference")

// Store is the contract the intake stage writes through.
type Store interface {
	Put(ctx context.Context, r io.Reader, contentType, originalName string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// FileStore writes each blob to Dir under a generated, collision-resistant
// name and returns that name as the reference.
type FileStore struct {
	Dir     string
	counter atomic.Uint64
	now     func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{Dir: dir, now: time.Now}, nil
}

func (s *FileStore) Put(ctx context.Context, r io.Reader, contentType, originalName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := fmt.Sprintf("%d-%d-%s", s.now().UnixNano(), s.counter.Add(1), SanitizeName(originalName))

	path := filepath.Join(s.Dir, ref)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	return ref, nil
}

// Open returns a reader for a stored blob.
func (s *FileStore) Open(ref string) (*os.File, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *FileStore) Delete(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("%q: %w", ref, ErrInvalidRef)
	}
	return filepath.Join(s.Dir, ref), nil
}

// SanitizeName keeps letters, digits, dot, dash and underscore from the base
// name and replaces everything else with an underscore.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}
