package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrImageNotFound is returned when a loader has no image under the requested name.
var ErrImageNotFound = errors.New("image not found")

// ImageLoader materializes a task payload from a filename.
type ImageLoader interface {
	Load(filename string) ([]byte, error)
}

// DirLoader reads images from a directory on disk.
type DirLoader struct {
	Dir string
}

// Load reads filename from the loader's directory. Names that would escape
// the directory are rejected.
func (l DirLoader) Load(filename string) ([]byte, error) {
	clean := filepath.Clean(filename)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %q escapes image directory", ErrImageNotFound, filename)
	}
	data, err := os.ReadFile(filepath.Join(l.Dir, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, filename)
	}
	return data, err
}

// MemoryLoader serves images from memory.
type MemoryLoader struct {
	mu     sync.RWMutex
	images map[string][]byte
}

// NewMemoryLoader copies images into a new loader.
func NewMemoryLoader(images map[string][]byte) *MemoryLoader {
	l := &MemoryLoader{images: make(map[string][]byte, len(images))}
	for k, v := range images {
		l.images[k] = append([]byte(nil), v...)
	}
	return l
}

// Load returns a copy of the stored image.
func (l *MemoryLoader) Load(filename string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	data, ok := l.images[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, filename)
	}
	return append([]byte(nil), data...), nil
}
