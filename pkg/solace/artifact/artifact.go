// Package artifact stores generated media (images, synthesized speech) and
// hands out references that a reply carries instead of the bytes.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Errors returned by stores.
var (
	ErrNotFound   = errors.New("artifact: not found")
	ErrInvalidRef = errors.New("artifact: invalid reference")
	ErrEmpty      = errors.New("artifact: empty data")
)

// Store saves artifacts. References are slash-separated keys of the form
// "<session>/<id><ext>".
type Store interface {
	Put(ctx context.Context, sessionID string, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, ref string) (data []byte, mimeType string, err error)
}

// newRef builds a fresh reference for a session and MIME type.
func newRef(sessionID, mimeType string) string {
	return sanitize(sessionID) + "/" + uuid.NewString() + extension(mimeType)
}

func sanitize(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if out == "" {
		return "_"
	}
	return out
}

var preferredExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"audio/wav":  ".wav",
	"audio/mpeg": ".mp3",
}

func extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(strings.ToLower(base))
	if ext, ok := preferredExt[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func validRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "\\") {
		return false
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return false
		}
	}
	return true
}

// DirStore keeps artifacts as files under a root directory. The MIME type is
// recovered from the file extension.
type DirStore struct {
	root string
}

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// Put implements Store.
func (s *DirStore) Put(ctx context.Context, sessionID string, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ref := newRef(sessionID, mimeType)
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write: %w", err)
	}
	return ref, nil
}

// Get implements Store.
func (s *DirStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if !validRef(ref) {
		return nil, "", ErrInvalidRef
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("artifact: read: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(ref))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, mimeType, nil
}

// Path returns the file backing ref.
func (s *DirStore) Path(ref string) (string, error) {
	if !validRef(ref) {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

type entry struct {
	data     []byte
	mimeType string
}

// MemoryStore keeps artifacts in memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]entry)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, sessionID string, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ref := newRef(sessionID, mimeType)
	s.mu.Lock()
	s.items[ref] = entry{data: append([]byte(nil), data...), mimeType: mimeType}
	s.mu.Unlock()
	return ref, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, ref string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	e, ok := s.items[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), e.data...), e.mimeType, nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
