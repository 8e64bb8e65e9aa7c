// Package confkit carries the config plumbing shared by every entry point:
// .env loading, path resolution relative to the main config file, and
// sections hydrated from their own YAML files.
package confkit

import (
	"os"
	"path/filepath"
)

// ResolvePath expands environment variables in file and resolves it against
// base unless it is already absolute.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory of the main config file. Relative paths in
// the config resolve against it.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// Section is a config subtree that lives in its own file. File holds the
// path as written in the main config; Value holds the parsed result after
// Hydrate.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate loads the section through loader, resolving File against base.
// A section with no File stays empty.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	s.File, s.Value = p, v
	return nil
}
