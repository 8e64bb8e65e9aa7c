package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlavorLineCombinesWords(t *testing.T) {
	flavor := &Flavor{
		syn:    []string{"Shredding"},
		trails: []string{"Corduroy"},
		randFn: func(n int) int { return 0 },
	}
	assert.Equal(t, "shredding corduroy...", flavor.Line())
}

func TestFlavorLineSingleList(t *testing.T) {
	flavor := &Flavor{
		syn:    []string{"Shredding"},
		randFn: func(n int) int { return 0 },
	}
	assert.Equal(t, "shredding...", flavor.Line())

	flavor = &Flavor{
		trails: []string{"Corduroy"},
		randFn: func(n int) int { return 0 },
	}
	assert.Equal(t, "corduroy...", flavor.Line())
}

func TestFlavorLineFallback(t *testing.T) {
	assert.Equal(t, fallbackFlavor, NewFlavor(nil, nil).Line())

	var flavor *Flavor
	assert.Equal(t, fallbackFlavor, flavor.Line())
}

func TestLoadFlavor(t *testing.T) {
	dir := t.TempDir()
	synPath := filepath.Join(dir, "syn.txt")
	trailsPath := filepath.Join(dir, "trails.txt")
	require.NoError(t, os.WriteFile(synPath, []byte("Shredding\n\nCarving\n"), 0o644))
	require.NoError(t, os.WriteFile(trailsPath, []byte("  Corduroy  \n"), 0o644))

	flavor := LoadFlavor(synPath, trailsPath)
	require.Len(t, flavor.syn, 2, "blank lines are skipped")
	require.Len(t, flavor.trails, 1, "lines are trimmed")

	line := flavor.Line()
	assert.True(t, strings.HasSuffix(line, " corduroy..."), "got %q", line)
}

func TestLoadFlavorMissingFiles(t *testing.T) {
	flavor := LoadFlavor(filepath.Join(t.TempDir(), "absent.txt"), "")
	assert.Equal(t, fallbackFlavor, flavor.Line())
}
