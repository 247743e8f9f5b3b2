// Package sink stages and writes generated files.
//
// Generation renders every artifact into a MemorySink. Only after the whole
// run has succeeded is the staged set committed to a FilesystemSink, so a
// failed run never leaves partial output behind.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
)

// OutputSink receives generated file content. Implementations must be safe
// for concurrent use.
type OutputSink interface {
	// WriteFile replaces the file at the slash-separated relative path with
	// content.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// FilesystemSink writes below a directory on the local filesystem.
type FilesystemSink struct {
	// Root is the base directory of every write.
	Root string

	// Mode is the permission of written files. Defaults to 0644.
	Mode os.FileMode
}

// NewFilesystemSink returns a FilesystemSink writing below root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root, Mode: 0o644}
}

// WriteFile writes content to path below the root, creating parent
// directories. The write is atomic: content goes to a temporary file in the
// target directory which is then renamed over the destination.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full := filepath.Join(s.Root, filepath.FromSlash(path))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}

	tmp, err := os.CreateTemp(dir, ".surface-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(content)
	cerr := tmp.Close()

	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Remove deletes the file at path below the root. A missing file is not an
// error.
func (s *FilesystemSink) Remove(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(path)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// MemorySink keeps files in memory. It is safe for concurrent use.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// WriteFile stores a copy of content under path.
func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = bytes.Clone(content)
	return nil
}

// Paths returns the stored paths in lexical order.
func (s *MemorySink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.files))
}

// Get returns a copy of the content stored under path, or nil.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.files[path])
}

// Files returns a copy of every stored file.
func (s *MemorySink) Files() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.files))
	for p, c := range s.files {
		out[p] = bytes.Clone(c)
	}
	return out
}

// Commit writes every file staged in from to to, in lexical path order. It
// stops at the first error.
func Commit(ctx context.Context, from *MemorySink, to OutputSink) error {
	for _, p := range from.Paths() {
		if err := to.WriteFile(ctx, p, from.Get(p)); err != nil {
			return err
		}
	}
	return nil
}

// Stale returns, in lexical order, the staged paths whose content in fsys is
// missing or different.
func Stale(from *MemorySink, fsys fs.FS) ([]string, error) {
	var stale []string
	for _, p := range from.Paths() {
		got, err := fs.ReadFile(fsys, p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			stale = append(stale, p)
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", p, err)
		case !bytes.Equal(got, from.Get(p)):
			stale = append(stale, p)
		}
	}
	return stale, nil
}

// Orphans returns, in lexical order, the files directly in dir of fsys whose
// name ends in ext and that from has not staged. They are leftovers of
// sources that no longer exist. A missing dir has no orphans.
func Orphans(from *MemorySink, fsys fs.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	from.mu.RLock()
	defer from.mu.RUnlock()
	var orphans []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ext {
			continue
		}
		p := path.Join(dir, e.Name())
		if _, ok := from.files[p]; !ok {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}

// ValidatePath reports whether path can be written by a sink: a clean,
// slash-separated, relative path that stays below the root.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if len(path) >= 2 && path[1] == ':' {
		return errors.New("absolute paths not allowed")
	}
	if !fs.ValidPath(path) || path == "." {
		return errors.New("path must be clean, relative and inside the root")
	}
	return nil
}
