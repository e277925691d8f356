// Package match implements automatic template matching against a
// library of known templates. It is a best-effort capability: every
// failure is an ordinary error that callers treat as "matching
// unavailable", never as fatal.
package match

import (
	"context"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Register decoders for the formats a scanned form arrives in.
	_ "image/jpeg"
	_ "image/png"

	"github.com/autoformfill/formfill/internal/configfile"
)

// LibraryMatcher matches an input image against templates stored in a
// directory. A library template declares the pixel dimensions of the
// form it was calibrated for under an "image_size" key; the matcher
// picks the first template whose declared size equals the input image's
// size exactly.
type LibraryMatcher struct {
	dir    string
	logger *log.Logger
}

// NewLibraryMatcher creates a matcher over the given template directory.
func NewLibraryMatcher(dir string, logger *log.Logger) *LibraryMatcher {
	return &LibraryMatcher{dir: dir, logger: logger}
}

// Match scans the library for a template calibrated to the input
// image's dimensions.
func (m *LibraryMatcher) Match(ctx context.Context, imagePath string) (map[string]any, error) {
	if m.dir == "" {
		return nil, fmt.Errorf("no template library configured")
	}

	width, height, err := imageSize(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image dimensions: %w", err)
	}

	candidates, err := m.libraryTemplates()
	if err != nil {
		return nil, err
	}

	for _, path := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		raw, err := configfile.Load(path)
		if err != nil {
			m.logf("skipping unreadable library template %s: %v", path, err)
			continue
		}
		w, h, ok := declaredSize(raw)
		if !ok {
			continue
		}
		if w == width && h == height {
			m.logf("matched library template %s (%dx%d)", filepath.Base(path), w, h)
			return raw, nil
		}
	}

	return nil, fmt.Errorf("no library template matches %dx%d image", width, height)
}

// libraryTemplates lists candidate template files in a stable order.
func (m *LibraryMatcher) libraryTemplates() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read template library %s: %w", m.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
			paths = append(paths, filepath.Join(m.dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("template library %s holds no templates", m.dir)
	}
	return paths, nil
}

func (m *LibraryMatcher) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func declaredSize(raw map[string]any) (int, int, bool) {
	list, ok := raw["image_size"].([]any)
	if !ok || len(list) != 2 {
		return 0, 0, false
	}
	w, okW := toInt(list[0])
	h, okH := toInt(list[1])
	if !okW || !okH {
		return 0, 0, false
	}
	return w, h, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
