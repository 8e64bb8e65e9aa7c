package report

import (
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
)

const fallbackFlavor = "carving fresh powder..."

// Flavor produces the one-line ski flourish that opens every report. It
// combines a random word from each list; with no lists loaded it falls back
// to a fixed line.
type Flavor struct {
	syn    []string
	trails []string
	randFn func(n int) int
}

// NewFlavor builds a flavor source from in-memory word lists.
func NewFlavor(syn, trails []string) *Flavor {
	return &Flavor{syn: syn, trails: trails}
}

// LoadFlavor reads the word lists from disk. Missing files are tolerated.
func LoadFlavor(synPath, trailsPath string) *Flavor {
	return NewFlavor(readLines(synPath), readLines(trailsPath))
}

// Line returns one flavor line. Safe on a nil receiver.
func (f *Flavor) Line() string {
	if f == nil {
		return fallbackFlavor
	}
	switch {
	case len(f.syn) > 0 && len(f.trails) > 0:
		return strings.ToLower(f.pick(f.syn)) + " " + strings.ToLower(f.pick(f.trails)) + "..."
	case len(f.syn) > 0:
		return strings.ToLower(f.pick(f.syn)) + "..."
	case len(f.trails) > 0:
		return strings.ToLower(f.pick(f.trails)) + "..."
	default:
		return fallbackFlavor
	}
}

func (f *Flavor) pick(list []string) string {
	if f.randFn != nil {
		return list[f.randFn(len(list))]
	}
	return list[rand.Intn(len(list))]
}

func readLines(path string) []string {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logx.Errorf("report: read flavor file %s: %v", path, err)
		}
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
