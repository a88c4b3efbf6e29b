package testrun

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects test modules in the test directory.
const DefaultPattern = "*.py"

// PackageMarker is shipped alongside the modules when present but is never
// run as a test.
const PackageMarker = "__init__.py"

// Module is one discovered test module.
type Module struct {
	// Name is the file name, which is also the name of the test
	Name string

	// Path is the local path of the module
	Path string
}

// Discover lists the test modules in dir matching pattern. Hidden files and
// the package marker are excluded. The result is sorted by name.
func Discover(dir, pattern string) ([]Module, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid test pattern %q", pattern)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading test directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test directory %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var modules []Module
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasPrefix(name, ".") || name == PackageMarker {
			continue
		}
		modules = append(modules, Module{Name: name, Path: filepath.Join(dir, filepath.FromSlash(m))})
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules, nil
}

// Names returns the module names.
func Names(modules []Module) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name
	}
	return names
}
