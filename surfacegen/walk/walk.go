// Package walk enumerates Go source files below a root directory.
//
// The sequence is lazy and its order is reproducible: entries of each
// directory are visited in lexicographic order regardless of the order the
// underlying file system lists them in.
package walk

import (
	"fmt"
	"io/fs"
	"iter"
	"path"
	"slices"
	"strings"
)

// Source is one discovered source file.
type Source struct {
	// Path is the slash-separated path of the file relative to fsys.
	Path string

	// Rel is the path of the file relative to the walk root.
	Rel string

	// Segments are the directory names between the root and the file,
	// outer to inner. Empty for files directly in the root.
	Segments []string
}

// Sources returns every .go file below root, excluding tests.
//
// Directories the go tool ignores (names starting with "." or "_", and
// "testdata") are skipped. A directory that cannot be read yields an error and
// ends the sequence.
func Sources(fsys fs.FS, root string) iter.Seq2[Source, error] {
	return func(yield func(Source, error) bool) {
		walkDir(fsys, root, nil, yield)
	}
}

// walkDir returns false once the consumer stops or an error was yielded.
func walkDir(fsys fs.FS, dir string, segments []string, yield func(Source, error) bool) bool {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		yield(Source{}, fmt.Errorf("read dir %s: %w", dir, err))
		return false
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	for _, e := range entries {
		name := e.Name()
		p := path.Join(dir, name)

		if e.IsDir() {
			if ignoredDir(name) {
				continue
			}
			// Copy so sibling directories never share a backing array.
			next := append(slices.Clip(segments), name)
			if !walkDir(fsys, p, next, yield) {
				return false
			}
			continue
		}

		if !IsSource(name) {
			continue
		}
		src := Source{
			Path:     p,
			Rel:      path.Join(append(slices.Clone(segments), name)...),
			Segments: slices.Clone(segments),
		}
		if !yield(src, nil) {
			return false
		}
	}
	return true
}

// IsSource reports whether a file name is a non-test Go source file.
func IsSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

func ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata"
}
