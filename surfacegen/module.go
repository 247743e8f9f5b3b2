package surfacegen

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ErrNoModule is returned when no go.mod encloses the API directory and no
// import path is configured.
var ErrNoModule = errors.New("no go.mod found")

// findImportPath returns the import path of dir by locating the nearest
// enclosing go.mod.
func findImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for modDir := abs; ; {
		name := filepath.Join(modDir, "go.mod")
		data, err := os.ReadFile(name)
		switch {
		case err == nil:
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return "", fmt.Errorf("%s: no module directive", name)
			}
			rel, err := filepath.Rel(modDir, abs)
			if err != nil {
				return "", err
			}
			if rel == "." {
				return modPath, nil
			}
			return path.Join(modPath, filepath.ToSlash(rel)), nil
		case !errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("read %s: %w", name, err)
		}

		parent := filepath.Dir(modDir)
		if parent == modDir {
			return "", fmt.Errorf("%w above %s", ErrNoModule, abs)
		}
		modDir = parent
	}
}
