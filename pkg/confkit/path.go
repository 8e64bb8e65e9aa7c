package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// maxSearchDepth bounds the upward walk so a checkout without repo markers
// cannot scan the whole filesystem.
const maxSearchDepth = 8

// walkUp visits dir and its parents until fn returns true or maxSearchDepth
// levels have been visited.
func walkUp(dir string, fn func(string) bool) {
	for i := 0; i < maxSearchDepth; i++ {
		if fn(dir) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func isRepoRoot(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, ".git"))
}

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// ProjectRoot locates the repository root by walking up from this source file
// to the first directory holding go.mod or .git. It falls back to the working
// directory so relative defaults stay usable in deployed binaries that ship
// without the repo.
func ProjectRoot() (string, error) {
	if _, file, _, ok := runtime.Caller(0); ok {
		root := ""
		walkUp(filepath.Dir(file), func(dir string) bool {
			if isRepoRoot(dir) {
				root = dir
				return true
			}
			return false
		})
		if root != "" {
			return root, nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// ProjectPath joins the repository root with rel.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath returns ProjectPath(rel) and panics on failure.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}
